// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package installer

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/jeranaias/rigrun-setup/internal/logging"
)

// progressInterval spaces out download progress messages.
const progressInterval = 2 * time.Second

// ProgressFunc receives the bytes written so far and the expected total,
// which is -1 when the server did not send a length.
type ProgressFunc func(done, total int64)

type progressWriter struct {
	done   int64
	total  int64
	every  *rate.Sometimes
	report ProgressFunc
}

func (p *progressWriter) Write(b []byte) (int, error) {
	p.done += int64(len(b))
	if p.report != nil {
		p.every.Do(func() { p.report(p.done, p.total) })
	}
	return len(b), nil
}

// progress reports a transfer through Notify, at most once per
// progressInterval.
func (in *Installer) progress(what string) ProgressFunc {
	return func(done, total int64) {
		if total > 0 {
			in.notify("%s: %s of %s", what, humanize.Bytes(uint64(done)), humanize.Bytes(uint64(total)))
			return
		}
		in.notify("%s: %s", what, humanize.Bytes(uint64(done)))
	}
}

// download fetches url into dir/name and returns the file path. Only the
// context bounds the transfer.
func download(ctx context.Context, client *http.Client, url, dir, name string, report ProgressFunc) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", "rigrun-setup")

	log := logging.Log.WithFields(logrus.Fields{"url": url})
	log.Debug("downloading")

	resp, err := client.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to download %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", withKind(Network, fmt.Errorf("failed to download %s: HTTP %d", url, resp.StatusCode))
	}

	dest := filepath.Join(dir, name)
	out, err := os.OpenFile(dest, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o700)
	if err != nil {
		return "", err
	}
	pw := &progressWriter{
		total:  resp.ContentLength,
		every:  &rate.Sometimes{Interval: progressInterval},
		report: report,
	}
	n, err := io.Copy(io.MultiWriter(out, pw), resp.Body)
	if cerr := out.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return "", withKind(Network, fmt.Errorf("failed to download %s: %w", url, err))
	}
	log.WithField("bytes", n).Debug("download complete")
	return dest, nil
}
