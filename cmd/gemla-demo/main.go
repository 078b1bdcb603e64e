// Command gemla-demo drives a toy genetic algorithm through
// engine.Engine end to end: a population of integers whose "fitness" is
// just its own value, mutated by a small random walk, to exercise
// growth, concurrent dispatch and merge without any real domain logic.
package main

import (
	"context"
	"flag"
	"math/rand"
	"os"

	"github.com/google/gops/agent"
	log "github.com/sirupsen/logrus"

	"github.com/nicolagi/gemla/config"
	"github.com/nicolagi/gemla/engine"
	"github.com/nicolagi/gemla/node"
	"github.com/nicolagi/gemla/remote"
	"github.com/nicolagi/gemla/store"
)

// population is the demo Genome: an integer, simulated by leaving it
// unchanged (Simulate would normally score a candidate against some
// problem; here the score is the value itself) and mutated by a random
// walk of +/-1.
type population struct {
	Value int
}

func (p *population) Simulate(_ context.Context, _ node.Context) error {
	return nil
}

func (p *population) Mutate(_ node.Context) error {
	if rand.Intn(2) == 0 {
		p.Value++
	} else {
		p.Value--
	}
	return nil
}

func initPopulation(_ node.Context) (*population, error) {
	return &population{Value: rand.Intn(100)}, nil
}

func mergePopulation(left, right *population, _ node.ID) (*population, error) {
	if right.Value > left.Value {
		return &population{Value: right.Value}, nil
	}
	return &population{Value: left.Value}, nil
}

func main() {
	gopsEnabled := flag.Bool("gops", false, "start a gops diagnostics agent")
	configPath := flag.String("config", "", "path to a gemla ini config file; overrides -overwrite and -generations-per-height")
	snapshotPath := flag.String("snapshot", "gemla.snapshot", "path to the durable snapshot file")
	overwrite := flag.Bool("overwrite", false, "discard any existing snapshot at -snapshot")
	generationsPerHeight := flag.Uint64("generations-per-height", 2, "generations budget scaling factor")
	steps := flag.Uint64("steps", 3, "number of levels to grow the tree by")
	logLevel := flag.String("log-level", "info", "log level: debug, info, warn, error")
	s3Bucket := flag.String("mirror-s3-bucket", "", "if set, asynchronously mirror the snapshot file to this S3 bucket")
	s3Region := flag.String("mirror-s3-region", "us-east-1", "S3 region for -mirror-s3-bucket")
	s3Profile := flag.String("mirror-s3-profile", "default", "shared-credentials profile for -mirror-s3-bucket")
	flag.Parse()

	ll, err := log.ParseLevel(*logLevel)
	if err != nil {
		log.Fatalf("could not parse log level %q: %v", *logLevel, err)
	}
	log.SetLevel(ll)
	log.SetOutput(os.Stderr)

	if *gopsEnabled {
		// Do NOT turn on agent.ShutdownCleanup: letting its signal
		// handler call os.Exit would skip Engine.Close, losing the last
		// in-flight write.
		if err := agent.Listen(agent.Options{}); err != nil {
			log.Warnf("could not start gops agent: %v", err)
		}
	}

	cfg := engine.Config{GenerationsPerHeight: *generationsPerHeight, Overwrite: *overwrite}
	format := store.FormatJSON
	if *configPath != "" {
		cfg, format, err = config.LoadFile(*configPath)
		if err != nil {
			log.Fatalf("could not load config %q: %v", *configPath, err)
		}
	}

	e, err := engine.Create[*population](*snapshotPath, cfg, format, initPopulation, mergePopulation)
	if err != nil {
		log.Fatalf("could not create engine at %q: %v", *snapshotPath, err)
	}
	e.SetMirror(remote.NewMirror(*s3Bucket, *s3Region, *s3Profile))
	defer func() {
		if err := e.Close(); err != nil {
			log.Errorf("could not close engine cleanly: %v", err)
		}
	}()

	if err := e.Simulate(context.Background(), *steps); err != nil {
		log.Fatalf("simulate: %v", err)
	}

	root := e.Tree()
	log.WithFields(log.Fields{
		"height": root.Height(),
		"state":  root.Val.State(),
		"value":  (*root.Val.AsRef()).Value,
	}).Info("simulation finished")
}
