package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/coder/websocket"

	"github.com/clarivox/clarivox/internal/feedback"
	"github.com/clarivox/clarivox/internal/observe"
	"github.com/clarivox/clarivox/internal/polish"
	"github.com/clarivox/clarivox/internal/polish/tone"
	"github.com/clarivox/clarivox/internal/segment"
)

// session owns one websocket connection: the recording state machine, the
// transcript tracker, and the per-client tone mode. Events arrive in order
// on the single read loop, so no locking is needed beyond the tracker's own.
type session struct {
	conn        *websocket.Conn
	pipeline    *polish.Pipeline
	coordinator *feedback.Coordinator
	tracker     *segment.Tracker
	logger      *slog.Logger
	metrics     *observe.Metrics

	recording bool
	mode      tone.Mode
}

func newSession(conn *websocket.Conn, s *Server) *session {
	return &session{
		conn:        conn,
		pipeline:    s.pipeline,
		coordinator: s.coordinator,
		tracker:     segment.NewTracker(s.currentClassifier()),
		logger:      s.logger,
		metrics:     s.metrics,
		mode:        s.defaultTone,
	}
}

// run reads messages until the connection closes or ctx is cancelled.
func (s *session) run(ctx context.Context) error {
	for {
		_, data, err := s.conn.Read(ctx)
		if err != nil {
			if websocket.CloseStatus(err) == websocket.StatusNormalClosure ||
				websocket.CloseStatus(err) == websocket.StatusGoingAway {
				return nil
			}
			return fmt.Errorf("server: read: %w", err)
		}

		var msg clientMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			s.sendError(ctx, "malformed message: "+err.Error())
			continue
		}

		if err := s.dispatch(ctx, msg); err != nil {
			var malformed *feedback.MalformedFeedbackError
			if errors.As(err, &malformed) {
				s.sendError(ctx, malformed.Error())
				continue
			}
			return err
		}
	}
}

func (s *session) dispatch(ctx context.Context, msg clientMessage) error {
	switch {
	case msg.Command == cmdStartRecording:
		s.recording = true
		s.tracker.Reset()
		return s.send(ctx, typeMessage{Type: "recording_started"})

	case msg.Command == cmdStopRecording:
		s.recording = false
		if flush := s.tracker.Flush(); flush != nil {
			if err := s.process(ctx, flush); err != nil {
				return err
			}
		}
		return s.send(ctx, typeMessage{Type: "recording_complete"})

	case msg.Command != "":
		s.sendError(ctx, "unknown command: "+msg.Command)
		return nil
	}

	switch msg.Type {
	case evtVoiceStart:
		if s.recording {
			s.tracker.Voice(time.Now())
		}
		return nil

	case evtVoiceEnd:
		if !s.recording {
			return nil
		}
		silence := time.Duration(msg.SilenceDuration * float64(time.Second))
		cat, flush := s.tracker.Silence(silence)
		switch cat {
		case segment.CategoryParagraphBreak:
			return s.send(ctx, typeMessage{Type: "paragraph_break"})
		case segment.CategoryEndOfTurn:
			if flush != nil {
				return s.process(ctx, flush)
			}
		}
		return nil

	case evtPartial:
		// Partials are preview-only; nothing is buffered until final.
		return nil

	case evtFinal:
		if s.recording {
			s.tracker.Append(msg.Text)
		}
		return nil

	case evtSetTone:
		mode, err := tone.ParseMode(msg.Mode)
		if err != nil {
			s.sendError(ctx, err.Error())
			return nil
		}
		s.mode = mode
		return s.send(ctx, ackMessage{Type: "feedback_ack", Action: evtSetTone, Status: "ok"})

	case evtApprove:
		if err := s.coordinator.Approve(s.mode); err != nil {
			return err
		}
		s.recordVerdict(ctx, evtApprove)
		return s.send(ctx, ackMessage{Type: "feedback_ack", Action: evtApprove, Status: "ok"})

	case evtReject:
		if err := s.coordinator.Reject(s.mode); err != nil {
			return err
		}
		s.recordVerdict(ctx, evtReject)
		return s.send(ctx, ackMessage{Type: "feedback_ack", Action: evtReject, Status: "ok"})

	case evtCorrect:
		if err := s.coordinator.SubmitManual(msg.Original, msg.Output, msg.Correction, s.mode); err != nil {
			return err
		}
		s.recordVerdict(ctx, evtCorrect)
		return s.send(ctx, ackMessage{Type: "feedback_ack", Action: evtCorrect, Status: "ok"})

	case evtAutoImprove:
		improveStart := time.Now()
		suggestion, err := s.coordinator.AutoImprove(ctx, msg.Original, msg.Output, s.mode)
		if err != nil {
			return err
		}
		if s.metrics != nil {
			s.metrics.RecordSuggestLatency(ctx, time.Since(improveStart).Seconds())
			s.metrics.RecordSuggestion(ctx, string(suggestion.Source))
		}
		return s.send(ctx, suggestionMessage{
			Type:           "suggestion",
			Text:           suggestion.Text,
			Source:         string(suggestion.Source),
			ManualRequired: suggestion.ManualRequired,
		})

	default:
		s.sendError(ctx, "unknown message type: "+msg.Type)
		return nil
	}
}

// process runs one flushed turn through the pipeline, streaming staged
// progress to the client.
func (s *session) process(ctx context.Context, flush *segment.Flush) error {
	if err := s.send(ctx, typeMessage{Type: "processing"}); err != nil {
		return err
	}

	var sendErr error
	result := s.pipeline.RunObserved(ctx, polish.Utterance{
		RawText:   flush.Text,
		ToneMode:  s.mode,
		CreatedAt: flush.Started,
	}, func(index int, res polish.StageResult, text string) {
		if sendErr != nil {
			return
		}
		sendErr = s.send(ctx, stageMessage{
			Type:  "stage",
			Stage: index + 1,
			Name:  res.Name,
			Text:  text,
		})
	})
	if sendErr != nil {
		return sendErr
	}

	if s.metrics != nil {
		// A learned result means the exact-match store served the turn.
		s.metrics.RecordCacheLookup(ctx, result.Learned)
		s.metrics.RecordPipeline(ctx, result.TotalElapsed.Seconds(), result.Learned)
	}

	return s.send(ctx, sentenceMessage{
		Type:      "fullSentence",
		Text:      result.FinalText,
		Learned:   result.Learned,
		LatencyMS: result.TotalElapsed.Milliseconds(),
	})
}

func (s *session) recordVerdict(ctx context.Context, verdict string) {
	if s.metrics != nil {
		s.metrics.RecordVerdict(ctx, verdict, string(s.mode))
	}
}

func (s *session) send(ctx context.Context, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("server: marshal: %w", err)
	}
	return s.conn.Write(ctx, websocket.MessageText, data)
}

// sendError reports a recoverable per-message failure. Write errors here are
// logged, not propagated; the read loop will notice a dead connection.
func (s *session) sendError(ctx context.Context, message string) {
	if err := s.send(ctx, errorMessage{Type: "error", Message: message}); err != nil {
		s.logger.Debug("failed to send error message", slog.String("error", err.Error()))
	}
}
