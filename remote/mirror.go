// Package remote optionally copies the engine's locally-durable
// snapshot file to permanent off-box storage: a lazily constructed S3
// client, "ensure it, then use it" call sites, indefinite tolerance of
// transient errors.
//
// The mirror is explicitly best-effort. The authoritative,
// crash-recoverable copy of an engine's state is always the local P/T
// pair (package store); losing connectivity to the mirror bucket must
// never affect simulation correctness or termination.
package remote

import (
	"bytes"
	"os"
	"sync"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	log "github.com/sirupsen/logrus"
)

// Mirror asynchronously copies a local snapshot file to an S3 object
// after a successful local persistence point.
type Mirror struct {
	bucket  string
	region  string
	profile string

	mu     sync.Mutex
	client *s3.S3

	jobs chan mirrorJob
	done chan struct{}
}

type mirrorJob struct {
	key  string
	path string
}

// NewMirror returns a Mirror targeting bucket using region and the named
// shared-credentials profile, or nil if bucket is empty -- meaning
// mirroring is disabled, which every method on *Mirror tolerates as a
// receiver.
func NewMirror(bucket, region, profile string) *Mirror {
	if bucket == "" {
		return nil
	}
	m := &Mirror{
		bucket:  bucket,
		region:  region,
		profile: profile,
		jobs:    make(chan mirrorJob, 1),
		done:    make(chan struct{}),
	}
	go m.run()
	return m
}

// Push schedules path's current contents to be copied to key in the
// mirror's bucket. It never blocks the caller: if an upload is already
// queued and not yet started, Push replaces it, since only the latest
// snapshot is worth mirroring.
func (m *Mirror) Push(key, path string) {
	if m == nil {
		return
	}
	job := mirrorJob{key: key, path: path}
	select {
	case m.jobs <- job:
		return
	default:
	}
	select {
	case <-m.jobs:
	default:
	}
	select {
	case m.jobs <- job:
	default:
	}
}

// Close stops the mirror's background worker, waiting for any upload in
// flight to finish. A nil Mirror's Close is a no-op.
func (m *Mirror) Close() {
	if m == nil {
		return
	}
	close(m.jobs)
	<-m.done
}

func (m *Mirror) run() {
	defer close(m.done)
	for job := range m.jobs {
		if err := m.push(job); err != nil {
			log.WithFields(log.Fields{"key": job.key, "path": job.path, "cause": err.Error()}).
				Warn("remote: could not mirror snapshot, will retry on next persistence point")
		}
	}
}

func (m *Mirror) push(job mirrorJob) error {
	data, err := os.ReadFile(job.path)
	if err != nil {
		return err
	}
	if err := m.ensureClient(); err != nil {
		return err
	}
	_, err = m.client.PutObject(&s3.PutObjectInput{
		Bucket: aws.String(m.bucket),
		Key:    aws.String(job.key),
		Body:   bytes.NewReader(data),
	})
	return err
}

func (m *Mirror) ensureClient() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.client != nil {
		return nil
	}
	sess, err := session.NewSession(&aws.Config{
		Region:      aws.String(m.region),
		Credentials: credentials.NewSharedCredentials("", m.profile),
	})
	if err != nil {
		return err
	}
	m.client = s3.New(sess)
	return nil
}
