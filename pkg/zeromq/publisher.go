package zeromq

import (
	"sync"

	flatbuffers "github.com/google/flatbuffers/go"
	"github.com/open-teleop/kinsim/pkg/model"
)

// PoseTopicPrefix prefixes the topic poses are published on; the body name is
// appended.
const PoseTopicPrefix = "kinsim.pose."

// Publisher sends a payload on a topic
type Publisher interface {
	PublishMessage(topic string, message []byte) error
}

// PosePublisher publishes body poses as Pose flatbuffers
type PosePublisher struct {
	publisher Publisher
	session   string
	builder   *flatbuffers.Builder
	mu        sync.Mutex
}

// NewPosePublisher creates a new publisher stamping frames with session
func NewPosePublisher(publisher Publisher, session string) *PosePublisher {
	return &PosePublisher{
		publisher: publisher,
		session:   session,
		builder:   flatbuffers.NewBuilder(256),
	}
}

// PublishPose publishes the pose of the named body
func (p *PosePublisher) PublishPose(name string, pose model.Pose) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	frame := EncodePose(p.builder, name, p.session, pose)
	return p.publisher.PublishMessage(PoseTopicPrefix+name, frame)
}
