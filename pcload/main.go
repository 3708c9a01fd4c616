// Command pcload streams a point cloud from a file or URL, shows progress and
// prints the bounds of the transformed cloud.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"

	"pcstream/pkg/cloud"
	"pcstream/pkg/colormap"
	"pcstream/pkg/config"
	"pcstream/pkg/load"
	"pcstream/pkg/pcd"
	"pcstream/pkg/stream"

	"github.com/cheggaaa/pb"
	"github.com/dustin/go-humanize"
	logging "github.com/ipfs/go-log/v2"
	"github.com/spf13/cobra"
)

var log = logging.Logger("pcload")

var cfg struct {
	in       string
	out      string
	config   string
	format   string
	color    string
	logLevel string
	timeout  string
	chunk    int
	ranged   bool
	quiet    bool
	roll     float64
	pitch    float64
	yaw      float64
}

var cmd = &cobra.Command{
	Use:   "pcload",
	Short: "Stream a .bin or .pcd point cloud and report its bounds",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := settings(cmd)
		if err != nil {
			return err
		}
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()
		return run(ctx, c)
	},
}

func init() {
	fl := cmd.PersistentFlags()
	fl.StringVarP(&cfg.in, "in", "i", "", "input file or http(s) URL")
	fl.StringVarP(&cfg.out, "out", "o", "", "write the loaded cloud to a .pcd or .bin file")
	fl.StringVarP(&cfg.config, "config", "c", "", "YAML config file")
	fl.StringVar(&cfg.format, "format", "auto", "input format: auto, bin or pcd")
	fl.StringVar(&cfg.color, "color", "rgb", "color channel: rgb, x, y or z")
	fl.StringVar(&cfg.logLevel, "log-level", "warn", "log level")
	fl.StringVar(&cfg.timeout, "timeout", "", "http timeout, e.g. 30s")
	fl.IntVar(&cfg.chunk, "chunk", stream.DefaultChunkSize, "chunk size in bytes")
	fl.BoolVar(&cfg.ranged, "range", false, "fetch http resources with Range requests")
	fl.BoolVarP(&cfg.quiet, "quiet", "q", false, "no progress bar")
	fl.Float64Var(&cfg.roll, "roll", 0, "rotation around x in radians")
	fl.Float64Var(&cfg.pitch, "pitch", 0, "rotation around y in radians")
	fl.Float64Var(&cfg.yaw, "yaw", 0, "rotation around z in radians")

	cmd.MarkPersistentFlagRequired("in")
}

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// settings merges the config file with the flags; flags given explicitly win.
func settings(cmd *cobra.Command) (*config.Config, error) {
	c := config.Default()
	if cfg.config != "" {
		var err error
		if c, err = config.Load(cfg.config); err != nil {
			return nil, err
		}
	}
	fl := cmd.Flags()
	if fl.Changed("chunk") {
		c.ChunkSize = cfg.chunk
	}
	if fl.Changed("range") {
		c.Ranged = cfg.ranged
	}
	if fl.Changed("timeout") {
		c.Timeout = cfg.timeout
	}
	if fl.Changed("color") {
		c.Color = cfg.color
	}
	if fl.Changed("log-level") {
		c.LogLevel = cfg.logLevel
	}
	if fl.Changed("roll") {
		c.Rotation.Roll = cfg.roll
	}
	if fl.Changed("pitch") {
		c.Rotation.Pitch = cfg.pitch
	}
	if fl.Changed("yaw") {
		c.Rotation.Yaw = cfg.yaw
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	if err := logging.SetLogLevel("*", c.LogLevel); err != nil {
		return nil, err
	}
	return c, nil
}

// progressSource advances a progress bar by the bytes of every chunk.
type progressSource struct {
	stream.Source
	bar *pb.ProgressBar
}

func (s *progressSource) Stream(ctx context.Context, fn stream.DataFunc) error {
	return s.Source.Stream(ctx, func(chunk []byte, total int64) error {
		if total > 0 {
			s.bar.SetTotal64(total)
		}
		s.bar.Add(len(chunk))
		return fn(chunk, total)
	})
}

func run(ctx context.Context, c *config.Config) error {
	timeout, _ := c.TimeoutDuration()
	src, err := stream.Open(cfg.in, stream.Options{
		ChunkSize: c.ChunkSize,
		Ranged:    c.Ranged,
		Client:    &http.Client{Timeout: timeout},
	})
	if err != nil {
		return err
	}
	format, err := load.ParseFormat(cfg.format)
	if err != nil {
		return err
	}
	if format == load.FormatAuto {
		format = load.FormatOf(cfg.in)
	}

	var channel *colormap.Channel
	if c.Color != "rgb" {
		if channel, err = colormap.New(c.Color); err != nil {
			return err
		}
	}

	var bar *pb.ProgressBar
	if !cfg.quiet {
		bar = pb.New64(0)
		bar.SetUnits(pb.U_BYTES)
		bar.Output = os.Stderr
		bar.Start()
		src = &progressSource{Source: src, bar: bar}
	}

	sink := cloud.NewSink(0)
	res, err := load.Run(ctx, src, load.Options{
		Format:    format,
		Transform: c.Transform(),
		Sink:      sink,
		Progress: func(stats cloud.Stats, n int) {
			if channel != nil {
				if stats.Dirty() {
					log.Debugf("color channel %s dirty at %d points", channel.Axis, n)
				}
				channel.Recompute(stats, sink)
			}
			if bar != nil {
				bar.Postfix(" " + humanize.Comma(int64(n)) + " points")
			}
		},
		Complete: func() {
			if bar != nil {
				bar.Finish()
			}
		},
	})
	if err != nil {
		if bar != nil {
			bar.Finish()
		}
		return err
	}

	fmt.Printf("%s: %s points from %s\n", cfg.in, humanize.Comma(int64(res.Sink.Len())), humanize.IBytes(uint64(res.Bytes)))
	if res.Header != nil {
		fmt.Printf("pcd %s, %d fields, %s body, %dx%d\n",
			res.Header.Version, len(res.Header.Fields), res.Header.Data, res.Header.Width, res.Header.Height)
	}
	fmt.Printf("x %s\ny %s\nz %s\n", res.Stats.X, res.Stats.Y, res.Stats.Z)

	if cfg.out == "" {
		return nil
	}
	colors := res.Sink.PointColors()
	if channel != nil {
		colors = channel.Colors[:res.Sink.Len()]
	}
	return write(cfg.out, res.Sink.Points(), colors)
}

func write(out string, points []cloud.Point, colors []cloud.Color) (err error) {
	f, err := os.Create(out)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()
	if strings.ToLower(filepath.Ext(out)) == ".bin" {
		return pcd.WriteBin(f, points, colors)
	}
	return pcd.Encode(f, points, colors)
}
