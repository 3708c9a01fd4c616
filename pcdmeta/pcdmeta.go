// Command pcdmeta answers area queries about .pcd files. Each JSON request
// read from stdin produces one JSON result on stdout.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"os"

	"pcstream/pkg/cloud"
	"pcstream/pkg/load"

	logging "github.com/ipfs/go-log/v2"
)

var log = logging.Logger("pcdmeta")

// AreaPrecision is the grid cell edge used for XYArea.
const AreaPrecision = 0.08

type PCD struct {
	PCDFile string
	Labels  [][]float32
}

type Result struct {
	Error      string
	Area       float32
	LabelCount []int
}

var errInvalidLabels = errors.New("invalid labels")

// Cal serves requests from r until EOF.
func Cal(ctx context.Context, r io.Reader, w io.Writer) {
	decoder := json.NewDecoder(r)
	encoder := json.NewEncoder(w)
	for {
		var req PCD
		err := decoder.Decode(&req)
		if err != nil {
			if errors.Is(err, io.EOF) {
				return
			}
			encoder.Encode(Result{Error: err.Error()})
			// a broken stream never recovers
			return
		}
		res, err := calOne(ctx, req)
		if err != nil {
			log.Warnf("%s: %v", req.PCDFile, err)
			res = Result{Error: err.Error()}
		}
		encoder.Encode(res)
	}
}

func calOne(ctx context.Context, req PCD) (res Result, err error) {
	boxes := make([]cloud.Box, 0, len(req.Labels))
	for _, l := range req.Labels {
		b, ok := cloud.BoxFromLabel(l)
		if !ok {
			return res, errInvalidLabels
		}
		boxes = append(boxes, b)
	}
	loaded, err := load.Open(ctx, req.PCDFile, load.Options{Format: load.FormatPCD})
	if err != nil {
		return
	}
	points := loaded.Sink.Points()
	res.Area = cloud.XYArea(points, AreaPrecision)
	res.LabelCount = []int{}
	for _, b := range boxes {
		res.LabelCount = append(res.LabelCount, cloud.XYAreaPointCount(points, b))
	}
	return
}

func main() {
	logging.SetLogLevel("*", "error")
	Cal(context.Background(), os.Stdin, os.Stdout)
}
