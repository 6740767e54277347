// Command kinsim-watch prints the poses a running kinsim publishes.
package main

import (
	"context"
	"flag"
	"log"
	"os/signal"
	"syscall"

	customlog "github.com/open-teleop/kinsim/pkg/log"
	"github.com/open-teleop/kinsim/pkg/transform"
	"github.com/open-teleop/kinsim/pkg/zeromq"
)

func main() {
	address := flag.String("address", "tcp://localhost:5556", "kinsim pose publisher address")
	body := flag.String("body", "", "only show the named body")
	level := flag.String("log-level", "info", "log level")
	flag.Parse()

	logger, err := customlog.NewLogrusLogger(*level, "")
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}

	listener, err := zeromq.NewPoseListener(*body, func(topic string, f zeromq.PoseFrame) {
		p := f.Transform.Position()
		roll, pitch, yaw := rpy(f.Transform)
		logger.WithFields(map[string]interface{}{"seq": f.Seq, "body": f.Body}).Infof("%-16s xyz=(%9.3f %9.3f %9.3f) rpy=(%7.2f %7.2f %7.2f)",
			f.Name, p.X, p.Y, p.Z, roll, pitch, yaw)
	}, logger)
	if err != nil {
		logger.Fatalf("Failed to create pose listener: %v", err)
	}
	if err := listener.Start(*address); err != nil {
		logger.Fatalf("Failed to start pose listener: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()

	listener.Stop()
	if n := listener.DecodeErrors(); n > 0 {
		logger.Warnf("%d frames could not be decoded", n)
	}
}

// rpy returns the roll, pitch and yaw of t in degrees.
func rpy(t transform.Transform) (roll, pitch, yaw float64) {
	r, p, y := t.RPY()
	return transform.ToDeg(r), transform.ToDeg(p), transform.ToDeg(y)
}
