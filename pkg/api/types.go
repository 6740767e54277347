package api

import "github.com/open-teleop/kinsim/pkg/kinematics"

// --- Data Structures for REST and WebSocket Messages ---

// JointValuesRequest carries a full joint-value batch keyed by mate index.
type JointValuesRequest struct {
	Values map[int]float64 `json:"values"`
}

// JointValuesResponse reports the most recently applied joint values.
type JointValuesResponse struct {
	Session string          `json:"session"`
	Values  map[int]float64 `json:"values"`
}

// PosesResponse reports the latest published poses.
type PosesResponse struct {
	Session string                  `json:"session"`
	Poses   []kinematics.PoseReport `json:"poses"`
}

// JointCommandMsg is a joint batch received on the joints WebSocket. ID is
// echoed back in the acknowledgement when set.
type JointCommandMsg struct {
	ID     string          `json:"id,omitempty"`
	Values map[int]float64 `json:"values"`
}

// JointCommandAck acknowledges a JointCommandMsg.
type JointCommandAck struct {
	ID        string `json:"id,omitempty"`
	CommandID string `json:"command_id,omitempty"`
	Status    string `json:"status"`
	Error     string `json:"error,omitempty"`
}

// PoseBatchMsg is one tick of changed poses pushed on the poses WebSocket.
type PoseBatchMsg struct {
	Session string                  `json:"session"`
	Poses   []kinematics.PoseReport `json:"poses"`
}
