package server

// clientMessage is the envelope for every client→server websocket message.
// Control commands use the "command" field; events use "type". Unused fields
// are empty.
type clientMessage struct {
	Command string `json:"command,omitempty"`
	Type    string `json:"type,omitempty"`

	// SilenceDuration accompanies voice_end, in seconds.
	SilenceDuration float64 `json:"silence_duration,omitempty"`

	// Text accompanies partial and final transcript events.
	Text string `json:"text,omitempty"`

	// Mode accompanies set_tone.
	Mode string `json:"mode,omitempty"`

	// Original, Output and Correction accompany the feedback events.
	Original   string `json:"original,omitempty"`
	Output     string `json:"output,omitempty"`
	Correction string `json:"correction,omitempty"`
}

// Client command and event names.
const (
	cmdStartRecording = "start_recording"
	cmdStopRecording  = "stop_recording"

	evtVoiceStart  = "voice_start"
	evtVoiceEnd    = "voice_end"
	evtPartial     = "partial"
	evtFinal       = "final"
	evtSetTone     = "set_tone"
	evtApprove     = "approve"
	evtReject      = "reject"
	evtCorrect     = "correct"
	evtAutoImprove = "auto_improve"
)

// typeMessage is a server→client message carrying only a type marker:
// recording_started, processing, recording_complete, paragraph_break.
type typeMessage struct {
	Type string `json:"type"`
}

// stageMessage streams per-stage progress while the pipeline runs.
type stageMessage struct {
	Type  string `json:"type"`
	Stage int    `json:"stage"`
	Name  string `json:"name"`
	Text  string `json:"text"`
}

// sentenceMessage delivers the final corrected text of one turn.
type sentenceMessage struct {
	Type      string `json:"type"`
	Text      string `json:"text"`
	Learned   bool   `json:"learned"`
	LatencyMS int64  `json:"latency_ms"`
}

// ackMessage confirms a feedback or control event.
type ackMessage struct {
	Type   string `json:"type"`
	Action string `json:"action"`
	Status string `json:"status"`
}

// suggestionMessage answers an auto_improve event.
type suggestionMessage struct {
	Type           string `json:"type"`
	Text           string `json:"text,omitempty"`
	Source         string `json:"source"`
	ManualRequired bool   `json:"manual_required"`
}

// errorMessage reports a per-message failure without closing the session.
type errorMessage struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}
