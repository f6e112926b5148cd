package web

import (
	"sync"
	"sync/atomic"
	"time"

	"dashtrack/internal/overlay"
)

// Status tracks pipeline progress for /api/status. It implements
// pipeline.Observer.
type Status struct {
	startUnixNano int64
	framesOK      uint64
	framesFailed  uint64
	videosDone    uint64
	lastFrameNano int64

	videosDir atomic.Value // string
	engine    atomic.Value // string
	workers   atomic.Int64

	mu       sync.Mutex
	current  string
	pending  int
	failures map[string]uint64
}

func NewStatus() *Status {
	s := &Status{failures: map[string]uint64{}}
	atomic.StoreInt64(&s.startUnixNano, time.Now().UTC().UnixNano())
	s.videosDir.Store("")
	s.engine.Store("")
	return s
}

func (s *Status) SetStatic(videosDir string, engine string, workers int) {
	if videosDir != "" {
		s.videosDir.Store(videosDir)
	}
	if engine != "" {
		s.engine.Store(engine)
	}
	if workers > 0 {
		s.workers.Store(int64(workers))
	}
}

func (s *Status) VideoStarted(video string, pending int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.current = video
	s.pending = pending
}

func (s *Status) FrameProcessed(_ string, err error) {
	atomic.StoreInt64(&s.lastFrameNano, time.Now().UTC().UnixNano())
	s.mu.Lock()
	if s.pending > 0 {
		s.pending--
	}
	s.mu.Unlock()

	if err == nil {
		atomic.AddUint64(&s.framesOK, 1)
		return
	}
	atomic.AddUint64(&s.framesFailed, 1)
	kind := string(overlay.KindOf(err))
	if kind == "" {
		kind = "OTHER"
	}
	s.mu.Lock()
	s.failures[kind]++
	s.mu.Unlock()
}

func (s *Status) VideoFinished(video string) {
	atomic.AddUint64(&s.videosDone, 1)
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == video {
		s.current = ""
		s.pending = 0
	}
}

type StatusSnapshot struct {
	Service        string            `json:"service"`
	NowUTC         string            `json:"now_utc"`
	UptimeSec      int64             `json:"uptime_sec"`
	VideosDir      string            `json:"videos_dir"`
	Engine         string            `json:"engine"`
	Workers        int               `json:"workers"`
	CurrentVideo   string            `json:"current_video,omitempty"`
	PendingFrames  int               `json:"pending_frames"`
	VideosFinished uint64            `json:"videos_finished"`
	FramesParsed   uint64            `json:"frames_parsed"`
	FramesFailed   uint64            `json:"frames_failed"`
	FailuresByKind map[string]uint64 `json:"failures_by_kind"`
	LastFrameUTC   string            `json:"last_frame_utc,omitempty"`
}

func (s *Status) Snapshot(nowUTC time.Time) StatusSnapshot {
	if nowUTC.IsZero() {
		nowUTC = time.Now().UTC()
	}
	start := time.Unix(0, atomic.LoadInt64(&s.startUnixNano)).UTC()

	snap := StatusSnapshot{
		Service:        "dashtrack",
		NowUTC:         nowUTC.UTC().Format(time.RFC3339Nano),
		UptimeSec:      int64(nowUTC.Sub(start).Seconds()),
		VideosDir:      s.videosDir.Load().(string),
		Engine:         s.engine.Load().(string),
		Workers:        int(s.workers.Load()),
		VideosFinished: atomic.LoadUint64(&s.videosDone),
		FramesParsed:   atomic.LoadUint64(&s.framesOK),
		FramesFailed:   atomic.LoadUint64(&s.framesFailed),
	}
	if last := atomic.LoadInt64(&s.lastFrameNano); last != 0 {
		snap.LastFrameUTC = time.Unix(0, last).UTC().Format(time.RFC3339Nano)
	}

	s.mu.Lock()
	snap.CurrentVideo = s.current
	snap.PendingFrames = s.pending
	snap.FailuresByKind = make(map[string]uint64, len(s.failures))
	for k, v := range s.failures {
		snap.FailuresByKind[k] = v
	}
	s.mu.Unlock()
	return snap
}
