package services

import (
	"fmt"
	"sync"
)

// MutationState is the stage a listing submission is in.
type MutationState int

const (
	StateIdle MutationState = iota
	StateUploadingMedia
	StateWritingRecord
	StateDone
	StateFailed
)

func (s MutationState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateUploadingMedia:
		return "uploading_media"
	case StateWritingRecord:
		return "writing_record"
	case StateDone:
		return "done"
	case StateFailed:
		return "failed"
	}
	return fmt.Sprintf("MutationState(%d)", int(s))
}

// Terminal reports whether no further transition is allowed.
func (s MutationState) Terminal() bool { return s == StateDone || s == StateFailed }

var transitions = map[MutationState][]MutationState{
	StateIdle:           {StateUploadingMedia, StateWritingRecord, StateFailed},
	StateUploadingMedia: {StateWritingRecord, StateFailed},
	StateWritingRecord:  {StateDone, StateFailed},
}

// Submission tracks one run of the create or update pipeline.
type Submission struct {
	Op      string
	State   MutationState
	History []MutationState
	// Uploaded holds the keys written to the media store by this run.
	Uploaded []string
	Err      error
}

func newSubmission(op string) *Submission {
	return &Submission{Op: op, State: StateIdle, History: []MutationState{StateIdle}}
}

func (s *Submission) advance(next MutationState) error {
	for _, ok := range transitions[s.State] {
		if ok == next {
			s.State = next
			s.History = append(s.History, next)
			return nil
		}
	}
	return fmt.Errorf("illegal submission transition %s -> %s", s.State, next)
}

// fail moves the submission to StateFailed unless it already finished.
func (s *Submission) fail(err error) error {
	if !s.State.Terminal() {
		s.State = StateFailed
		s.History = append(s.History, StateFailed)
	}
	s.Err = err
	return err
}

// inflight is a keyed set of running submissions.
type inflight struct {
	mu   sync.Mutex
	keys map[string]struct{}
}

func (f *inflight) acquire(key string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.keys == nil {
		f.keys = make(map[string]struct{})
	}
	if _, busy := f.keys[key]; busy {
		return false
	}
	f.keys[key] = struct{}{}
	return true
}

func (f *inflight) release(key string) {
	f.mu.Lock()
	delete(f.keys, key)
	f.mu.Unlock()
}

func inflightKey(ownerID, listingID string) string {
	if listingID == "" {
		listingID = "new"
	}
	return ownerID + "|" + listingID
}
