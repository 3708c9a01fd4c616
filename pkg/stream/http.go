package stream

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strconv"
)

// HTTPSource fetches the resource with one GET and streams the body. The
// total comes from Content-Length when the server sends it.
type HTTPSource struct {
	uri    string
	chunk  int
	client *http.Client
}

func NewHTTPSource(uri string, chunkSize int, client *http.Client) *HTTPSource {
	return &HTTPSource{uri: uri, chunk: chunkSize, client: client}
}

func (s *HTTPSource) Stream(ctx context.Context, fn DataFunc) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.uri, nil)
	if err != nil {
		return err
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: GET %s: %s", ErrUnexpectedStatus, s.uri, resp.Status)
	}
	total := UnknownSize
	if resp.ContentLength >= 0 {
		total = resp.ContentLength
	}
	log.Debugf("streaming %s (%d bytes)", s.uri, total)
	return pump(ctx, resp.Body, total, s.chunk, fn)
}

// RangeSource fetches the resource piece by piece with Range requests. The
// next request is only issued after the previous chunk was handled, so at
// most one request is in flight.
type RangeSource struct {
	uri    string
	chunk  int
	client *http.Client
}

func NewRangeSource(uri string, chunkSize int, client *http.Client) *RangeSource {
	return &RangeSource{uri: uri, chunk: chunkSize, client: client}
}

func (s *RangeSource) Stream(ctx context.Context, fn DataFunc) error {
	total := UnknownSize
	var offset int64
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		if total >= 0 && offset >= total {
			return nil
		}
		body, cr, status, err := s.fetch(ctx, offset)
		if err != nil {
			return err
		}
		switch status {
		case http.StatusOK:
			// The server ignored the range and sent everything.
			if offset != 0 {
				return fmt.Errorf("%w: range request at offset %d answered with full body", ErrUnexpectedStatus, offset)
			}
			if len(body) > 0 {
				if err := fn(body, int64(len(body))); err != nil {
					return err
				}
			}
			return nil
		case http.StatusRequestedRangeNotSatisfiable:
			// reading past the end of a resource of unknown size
			return nil
		}
		if cr != nil && cr.First >= 0 && cr.First != offset {
			return fmt.Errorf("%w: range request at offset %d answered from %d", ErrUnexpectedStatus, offset, cr.First)
		}
		if cr != nil && cr.Length >= 0 {
			total = cr.Length
		}
		if len(body) > 0 {
			if err := fn(body, total); err != nil {
				return err
			}
		}
		offset += int64(len(body))
		if total < 0 && len(body) < s.chunk {
			return nil
		}
		if len(body) == 0 {
			if total >= 0 && offset < total {
				return fmt.Errorf("%w: empty range response at offset %d of %d", ErrUnexpectedStatus, offset, total)
			}
			return nil
		}
	}
}

func (s *RangeSource) fetch(ctx context.Context, offset int64) ([]byte, *ContentRange, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.uri, nil)
	if err != nil {
		return nil, nil, 0, err
	}
	req.Header.Set("Range", fmt.Sprintf("bytes=%d-%d", offset, offset+int64(s.chunk)-1))
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, nil, 0, err
	}
	defer resp.Body.Close()
	switch resp.StatusCode {
	case http.StatusPartialContent, http.StatusOK:
	case http.StatusRequestedRangeNotSatisfiable:
		return nil, nil, resp.StatusCode, nil
	default:
		return nil, nil, 0, fmt.Errorf("%w: GET %s: %s", ErrUnexpectedStatus, s.uri, resp.Status)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, nil, 0, err
	}
	cr, _ := ParseContentRange(resp.Header.Get("Content-Range"))
	return body, cr, resp.StatusCode, nil
}

// ContentRange is a parsed Content-Range header. First and Last are -1 for
// the "*/length" form, Length is -1 when the size is given as "*".
type ContentRange struct {
	Unit        string
	First, Last int64
	Length      int64
}

var (
	contentRangeRe       = regexp.MustCompile(`^(\w+) (\d+)-(\d+)/(\d+|\*)`)
	contentRangeLengthRe = regexp.MustCompile(`^(\w+) \*/(\d+|\*)`)
)

func ParseContentRange(s string) (*ContentRange, bool) {
	if m := contentRangeRe.FindStringSubmatch(s); m != nil {
		first, _ := strconv.ParseInt(m[2], 10, 64)
		last, _ := strconv.ParseInt(m[3], 10, 64)
		return &ContentRange{Unit: m[1], First: first, Last: last, Length: parseLength(m[4])}, true
	}
	if m := contentRangeLengthRe.FindStringSubmatch(s); m != nil {
		return &ContentRange{Unit: m[1], First: -1, Last: -1, Length: parseLength(m[2])}, true
	}
	return nil, false
}

func parseLength(s string) int64 {
	if s == "*" {
		return -1
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return -1
	}
	return n
}
