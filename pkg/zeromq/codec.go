package zeromq

import (
	"fmt"
	"sort"
	"time"

	flatbuffers "github.com/google/flatbuffers/go"
	message "github.com/open-teleop/kinsim/pkg/flatbuffers/kinsim/message"
	"github.com/open-teleop/kinsim/pkg/model"
	"github.com/open-teleop/kinsim/pkg/transform"
	"gonum.org/v1/gonum/num/quat"
	"gonum.org/v1/gonum/spatial/r3"
)

// PoseFrame is the decoded form of a Pose flatbuffer.
type PoseFrame struct {
	Body      int
	Name      string
	Seq       uint64
	Stamp     time.Time
	Session   string
	Transform transform.Transform
}

// EncodePose serializes a published pose. The builder is reset first and may
// be reused across calls; the returned slice aliases its buffer.
func EncodePose(builder *flatbuffers.Builder, name, session string, pose model.Pose) []byte {
	builder.Reset()

	nameOffset := builder.CreateString(name)
	sessionOffset := builder.CreateString(session)

	t := pose.Transform
	message.PoseStart(builder)
	message.PoseAddBodyIndex(builder, int32(pose.Body))
	message.PoseAddSeq(builder, pose.Seq)
	message.PoseAddTimestampNs(builder, pose.Stamp.UnixNano())
	message.PoseAddSession(builder, sessionOffset)
	message.PoseAddTx(builder, t.Trans.X)
	message.PoseAddTy(builder, t.Trans.Y)
	message.PoseAddTz(builder, t.Trans.Z)
	message.PoseAddQw(builder, t.Rot.Real)
	message.PoseAddQx(builder, t.Rot.Imag)
	message.PoseAddQy(builder, t.Rot.Jmag)
	message.PoseAddQz(builder, t.Rot.Kmag)
	message.PoseAddBodyName(builder, nameOffset)
	message.FinishPoseBuffer(builder, message.PoseEnd(builder))

	return builder.FinishedBytes()
}

// DecodePose parses a Pose flatbuffer.
func DecodePose(data []byte) (frame PoseFrame, err error) {
	defer func() {
		// Truncated buffers make the flatbuffers accessors index out of range.
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: malformed pose frame: %v", ErrInvalidMessage, r)
		}
	}()
	if len(data) < flatbuffers.SizeUOffsetT {
		return PoseFrame{}, fmt.Errorf("%w: pose frame too short (%d bytes)", ErrInvalidMessage, len(data))
	}

	p := message.GetRootAsPose(data, 0)
	return PoseFrame{
		Body:    int(p.BodyIndex()),
		Name:    string(p.BodyName()),
		Seq:     p.Seq(),
		Stamp:   time.Unix(0, p.TimestampNs()),
		Session: string(p.Session()),
		Transform: transform.Transform{
			Rot:   quat.Number{Real: p.Qw(), Imag: p.Qx(), Jmag: p.Qy(), Kmag: p.Qz()},
			Trans: r3.Vec{X: p.Tx(), Y: p.Ty(), Z: p.Tz()},
		},
	}, nil
}

// EncodeJointCommand serializes a joint-value batch, mates in ascending order.
func EncodeJointCommand(values map[int]float64, stamp time.Time) []byte {
	mates := make([]int, 0, len(values))
	for m := range values {
		mates = append(mates, m)
	}
	sort.Ints(mates)

	builder := flatbuffers.NewBuilder(64 + 12*len(mates))

	message.JointCommandStartValuesVector(builder, len(mates))
	for i := len(mates) - 1; i >= 0; i-- {
		builder.PrependFloat64(values[mates[i]])
	}
	valuesOffset := builder.EndVector(len(mates))

	message.JointCommandStartMatesVector(builder, len(mates))
	for i := len(mates) - 1; i >= 0; i-- {
		builder.PrependInt32(int32(mates[i]))
	}
	matesOffset := builder.EndVector(len(mates))

	message.JointCommandStart(builder)
	message.JointCommandAddTimestampNs(builder, stamp.UnixNano())
	message.JointCommandAddMates(builder, matesOffset)
	message.JointCommandAddValues(builder, valuesOffset)
	message.FinishJointCommandBuffer(builder, message.JointCommandEnd(builder))

	return builder.FinishedBytes()
}

// DecodeJointCommand parses a JointCommand flatbuffer into a batch.
func DecodeJointCommand(data []byte) (values map[int]float64, err error) {
	defer func() {
		if r := recover(); r != nil {
			values = nil
			err = fmt.Errorf("%w: malformed joint command: %v", ErrInvalidMessage, r)
		}
	}()
	if len(data) < flatbuffers.SizeUOffsetT {
		return nil, fmt.Errorf("%w: joint command too short (%d bytes)", ErrInvalidMessage, len(data))
	}

	cmd := message.GetRootAsJointCommand(data, 0)
	n := cmd.MatesLength()
	if n != cmd.ValuesLength() {
		return nil, fmt.Errorf("%w: %d mates but %d values", ErrInvalidMessage, n, cmd.ValuesLength())
	}
	if n == 0 {
		return nil, fmt.Errorf("%w: empty joint command", ErrInvalidMessage)
	}

	values = make(map[int]float64, n)
	for i := 0; i < n; i++ {
		mate := int(cmd.Mates(i))
		if _, dup := values[mate]; dup {
			return nil, fmt.Errorf("%w: mate %d repeated", ErrInvalidMessage, mate)
		}
		values[mate] = cmd.Values(i)
	}
	return values, nil
}
