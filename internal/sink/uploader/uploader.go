// Copyright (C) 2022 NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package uploader is the uploader sink: it batches events and current
// samples into TSV bodies tagged with the run's key_date/test_id and POSTs
// them to a Clickhouse-compatible HTTP endpoint every 500ms, alongside a
// create/update job lifecycle against a Lunapark-style backend.
package uploader

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-co-op/gocron/v2"
	"golang.org/x/time/rate"

	"github.com/yandex-load/volta-go/internal/config"
	"github.com/yandex-load/volta-go/pkg/log"
	"github.com/yandex-load/volta-go/pkg/schema"
)

// jobnoFile is the file the job's URL is written to. The path is relative
// to the process's working directory, not the run's artifacts directory.
const jobnoFile = "jobno.log"

var columns = map[schema.Kind][]string{
	schema.KindCurrents: {"key_date", "test_id", "uts", "value"},
	schema.KindSync:     {"key_date", "test_id", "sys_uts", "log_uts", "app", "tag", "message"},
	schema.KindEvent:    {"key_date", "test_id", "sys_uts", "log_uts", "app", "tag", "message"},
	schema.KindMetric:   {"key_date", "test_id", "sys_uts", "log_uts", "app", "tag", "value"},
	schema.KindFragment: {"key_date", "test_id", "sys_uts", "log_uts", "app", "tag", "message"},
	schema.KindUnknown:  {"key_date", "test_id", "sys_uts", "log_uts", "app", "tag", "message"},
}

// row is one pending line, queued until the batching worker drains it.
type row struct {
	kind   schema.Kind
	fields []string
}

// Sink batches rows in memory and flushes them on a gocron schedule.
type Sink struct {
	cfg     *config.UploaderConfig
	keyDate string
	testID  string
	client  *http.Client
	limiter *rate.Limiter

	scheduler gocron.Scheduler
	mu        sync.Mutex
	pending   map[schema.Kind][]row

	jobno string
}

// Open starts the batching scheduler and, if a create-job URL is
// configured, creates the backend job up front.
func Open(cfg *config.UploaderConfig, keyDate, testID string) (*Sink, error) {
	scheduler, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("uploader: creating scheduler: %w", err)
	}

	s := &Sink{
		cfg:       cfg,
		keyDate:   keyDate,
		testID:    testID,
		client:    &http.Client{Timeout: 10 * time.Second},
		limiter:   rate.NewLimiter(rate.Every(time.Second), 1),
		scheduler: scheduler,
		pending:   make(map[schema.Kind][]row),
	}

	if cfg.CreateJobURL != "" {
		if err := s.createJob(); err != nil {
			log.Errorf("uploader: create job failed, continuing without job id: %v", err)
		}
	}

	if _, err := scheduler.NewJob(
		gocron.DurationJob(500*time.Millisecond),
		gocron.NewTask(s.flush),
	); err != nil {
		return nil, fmt.Errorf("uploader: scheduling flush job: %w", err)
	}
	scheduler.Start()

	return s, nil
}

// WriteEvent queues a log event for upload.
func (s *Sink) WriteEvent(ev schema.LogEvent) error {
	logUTS := ""
	if ev.HasLogUTS() {
		logUTS = strconv.FormatInt(ev.LogUTS, 10)
	}

	msg := ev.Message
	if ev.Kind == schema.KindMetric {
		msg = ev.Value.TSV()
	}

	s.mu.Lock()
	s.pending[ev.Kind] = append(s.pending[ev.Kind], row{
		kind:   ev.Kind,
		fields: []string{s.keyDate, s.testID, strconv.FormatInt(ev.SysUTS, 10), logUTS, ev.App, ev.Tag, msg},
	})
	s.mu.Unlock()
	return nil
}

// WriteFrame queues a chopped current-sample frame for upload.
func (s *Sink) WriteFrame(frame schema.SampleFrame) error {
	s.mu.Lock()
	for i := range frame.TS {
		s.pending[schema.KindCurrents] = append(s.pending[schema.KindCurrents], row{
			kind:   schema.KindCurrents,
			fields: []string{s.keyDate, s.testID, strconv.FormatInt(frame.TS[i], 10), frame.Values[i].TSV()},
		})
	}
	s.mu.Unlock()
	return nil
}

// flush drains every kind's pending rows and POSTs each as one TSV body.
// The scheduled job calls this every 500ms; it is also called once more
// from Close to guarantee a final drain.
func (s *Sink) flush() {
	s.mu.Lock()
	batch := s.pending
	s.pending = make(map[schema.Kind][]row)
	s.mu.Unlock()

	for kind, rows := range batch {
		if len(rows) == 0 {
			continue
		}
		if err := s.send(kind, rows); err != nil {
			log.Errorf("uploader: sending %d %s rows failed: %v", len(rows), kind, err)
		}
	}
}

func (s *Sink) send(kind schema.Kind, rows []row) error {
	var b strings.Builder
	for _, r := range rows {
		b.WriteString(strings.Join(r.fields, "\t"))
		b.WriteByte('\n')
	}
	body := b.String()

	query := fmt.Sprintf("INSERT INTO %s (%s) FORMAT TSV", string(kind), strings.Join(columns[kind], ", "))
	endpoint := s.cfg.Address + "?query=" + url.QueryEscape(query)

	err := s.post(endpoint, body)
	if err != nil {
		log.Warnf("uploader: retrying %s upload after error: %v", kind, err)
		if werr := s.limiter.Wait(context.Background()); werr != nil {
			return werr
		}
		err = s.post(endpoint, body)
	}
	return err
}

func (s *Sink) post(endpoint, body string) error {
	resp, err := s.client.Post(endpoint, "text/tab-separated-values", strings.NewReader(body))
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return fmt.Errorf("upload rejected with status %d", resp.StatusCode)
	}
	return nil
}

// createJob calls the backend's create-job endpoint. The response body is
// not read for a job number: the run's test id serves as the job id, and
// jobno.log receives the {hostname}/mobile/{test_id} path.
func (s *Sink) createJob() error {
	form := url.Values{}
	form.Set("key_date", s.keyDate)
	form.Set("test_id", s.testID)
	form.Set("task", s.cfg.Task)
	form.Set("component", s.cfg.Component)

	resp, err := s.client.PostForm(s.cfg.CreateJobURL, form)
	if err != nil {
		return fmt.Errorf("creating job: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return fmt.Errorf("create job rejected with status %d", resp.StatusCode)
	}

	hostname, _ := os.Hostname()
	jobPath := fmt.Sprintf("%s/mobile/%s", hostname, s.testID)
	s.jobno = s.testID

	if err := os.WriteFile(jobnoFile, []byte(jobPath), 0644); err != nil {
		log.Errorf("uploader: failed to write %s: %v", jobnoFile, err)
	}
	return nil
}

// updateJob posts the final job status to the backend, best-effort.
func (s *Sink) updateJob(status string) {
	if s.cfg.UpdateJobURL == "" || s.jobno == "" {
		return
	}
	form := url.Values{}
	form.Set("jobno", s.jobno)
	form.Set("status", status)

	resp, err := s.client.PostForm(s.cfg.UpdateJobURL, form)
	if err != nil {
		log.Errorf("uploader: updating job status failed: %v", err)
		return
	}
	resp.Body.Close()
}

// Close drains any remaining rows, updates the job status, and stops the
// scheduler.
func (s *Sink) Close() error {
	s.flush()
	s.updateJob("finished")
	return s.scheduler.Shutdown()
}
