// Copyright (C) 2022 NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package resource implements the "resource opener": turning a locator
// string (local path, serial device path, or HTTP(S) URL) into a readable
// byte stream with a configurable read timeout.
package resource

import (
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/yandex-load/volta-go/pkg/log"
)

// Stream is a byte source with a configurable read timeout. Device
// implementations surface a timed-out read as a zero-length read rather
// than an error.
type Stream interface {
	io.ReadCloser
	// LocalPath returns the filesystem path backing this stream, used by
	// installers that need a real file (e.g. to push an APK to a device).
	LocalPath() string
}

// Options configures how a locator is opened.
type Options struct {
	BaudRate    int
	ReadTimeout time.Duration
}

// httpCache caches the local path a URL locator was downloaded to, so a
// second Open() call for the same URL within a run does not re-fetch it.
var httpCache, _ = lru.New[string, string](64)

// Open dispatches on the locator's scheme: "file://" or a bare path opens a
// local file, a device-looking path (e.g. /dev/tty*, /dev/cu.*, COM*) opens
// a serial device at the configured baud rate, and http(s):// downloads
// (and caches) the resource to a local file first.
func Open(locator string, opts Options) (Stream, error) {
	switch {
	case strings.HasPrefix(locator, "http://"), strings.HasPrefix(locator, "https://"):
		return openHTTP(locator, opts)
	case looksLikeDevice(locator):
		return openDevice(locator, opts)
	default:
		return openFile(strings.TrimPrefix(locator, "file://"))
	}
}

func looksLikeDevice(locator string) bool {
	return strings.HasPrefix(locator, "/dev/tty") ||
		strings.HasPrefix(locator, "/dev/cu.") ||
		strings.HasPrefix(locator, "COM")
}

type fileStream struct {
	*os.File
	path string
}

func (f *fileStream) LocalPath() string { return f.path }

func openFile(path string) (Stream, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening resource file %s: %w", path, err)
	}
	return &fileStream{File: f, path: path}, nil
}

func openHTTP(locator string, opts Options) (Stream, error) {
	if cached, ok := httpCache.Get(locator); ok {
		if _, err := os.Stat(cached); err == nil {
			log.Debugf("resource: reusing cached download for %s -> %s", locator, cached)
			return openFile(cached)
		}
	}

	u, err := url.Parse(locator)
	if err != nil {
		return nil, fmt.Errorf("parsing resource url %s: %w", locator, err)
	}

	client := &http.Client{Timeout: 60 * time.Second}
	resp, err := client.Get(locator)
	if err != nil {
		return nil, fmt.Errorf("downloading resource %s: %w", locator, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("downloading resource %s: http status %d", locator, resp.StatusCode)
	}

	dir, err := os.MkdirTemp("", "volta-resource-*")
	if err != nil {
		return nil, fmt.Errorf("creating resource cache dir: %w", err)
	}
	localPath := filepath.Join(dir, filepath.Base(u.Path))
	if localPath == dir || filepath.Base(u.Path) == "" {
		localPath = filepath.Join(dir, "downloaded.bin")
	}

	out, err := os.Create(localPath)
	if err != nil {
		return nil, fmt.Errorf("creating local cache file %s: %w", localPath, err)
	}
	if _, err := io.Copy(out, resp.Body); err != nil {
		out.Close()
		return nil, fmt.Errorf("writing local cache file %s: %w", localPath, err)
	}
	out.Close()

	httpCache.Add(locator, localPath)
	return openFile(localPath)
}
