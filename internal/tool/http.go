package tool

import (
	"context"
	"io"
	"net/http"
	"os"
	"strconv"

	"github.com/hashicorp/go-retryablehttp"

	"github.com/sbkube/sbkube/internal/errs"
)

// HTTPSource is one app's http-type fields (spec.md §3.1 "http").
type HTTPSource struct {
	URL     string
	Dest    string
	Headers map[string]string
}

// httpClient is shared across Driver instances; go-retryablehttp already
// applies exponential backoff internally, so HTTPGet does not go through
// the Policy/classify machinery used for helm/kubectl subprocesses.
var httpClient = func() *retryablehttp.Client {
	c := retryablehttp.NewClient()
	c.RetryMax = 3
	c.Logger = nil
	return c
}()

// HTTPGet downloads src.URL to src.Dest, short-circuiting the download when
// dest already exists and a HEAD request reports an identical Content-Length
// (spec.md §4.4: "HEAD is used to short-circuit when the file already
// exists and the server returns the same content length; otherwise
// re-downloaded").
func (d *Driver) HTTPGet(ctx context.Context, src HTTPSource) (changed bool, err error) {
	if d.DryRun {
		d.Log.Info("dry-run: would download", "url", src.URL, "dest", src.Dest)
		return false, nil
	}

	if info, statErr := os.Stat(src.Dest); statErr == nil {
		if same, headErr := sameContentLength(ctx, src, info.Size()); headErr == nil && same {
			return false, nil
		}
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, src.URL, nil)
	if err != nil {
		return false, errs.Wrap(errs.Tool, err, "cannot build request for "+src.URL)
	}
	for k, v := range src.Headers {
		req.Header.Set(k, v)
	}

	resp, err := httpClient.Do(req)
	if err != nil {
		return false, errs.Wrap(errs.Tool, err, "http download failed: "+src.URL).
			WithHint("check network connectivity and the URL")
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return false, errs.New(errs.Tool, "http download failed: "+src.URL+" returned "+resp.Status)
	}

	if err := os.MkdirAll(parentDir(src.Dest), 0o755); err != nil {
		return false, errs.Wrap(errs.Filesystem, err, "cannot create directory for "+src.Dest)
	}

	tmp := src.Dest + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return false, errs.Wrap(errs.Filesystem, err, "cannot create "+tmp)
	}
	if _, err := io.Copy(f, resp.Body); err != nil {
		f.Close()
		os.Remove(tmp)
		return false, errs.Wrap(errs.Tool, err, "cannot write downloaded content to "+tmp)
	}
	f.Close()

	if err := os.Rename(tmp, src.Dest); err != nil {
		return false, errs.Wrap(errs.Filesystem, err, "cannot move "+tmp+" to "+src.Dest)
	}
	return true, nil
}

func sameContentLength(ctx context.Context, src HTTPSource, localSize int64) (bool, error) {
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodHead, src.URL, nil)
	if err != nil {
		return false, err
	}
	for k, v := range src.Headers {
		req.Header.Set(k, v)
	}
	resp, err := httpClient.Do(req)
	if err != nil {
		return false, err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return false, errs.New(errs.Tool, "HEAD request failed: "+resp.Status)
	}
	remote, err := strconv.ParseInt(resp.Header.Get("Content-Length"), 10, 64)
	if err != nil {
		return false, err
	}
	return remote == localSize, nil
}

func parentDir(path string) string {
	for i := len(path) - 1; i >= 0; i-- {
		if path[i] == '/' {
			return path[:i]
		}
	}
	return "."
}
