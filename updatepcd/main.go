// Command updatepcd rewrites .pcd files of any field layout and encoding as
// binary x y z rgb files.
package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"pcstream/pkg/cloud"
	"pcstream/pkg/load"
	"pcstream/pkg/pcd"

	logging "github.com/ipfs/go-log/v2"
	"github.com/spf13/cobra"
)

var cfg struct {
	in       string
	out      string
	logLevel string
	roll     float64
	pitch    float64
	yaw      float64
}

var cmd = &cobra.Command{
	Use:   "updatepcd",
	Short: "Normalize .pcd files to binary x y z rgb",
	RunE: func(cmd *cobra.Command, args []string) (err error) {
		if err = logging.SetLogLevel("*", cfg.logLevel); err != nil {
			return
		}
		return tranPcdFiles()
	},
}

func init() {
	cmd.PersistentFlags().StringVarP(&cfg.in, "in", "i", "", "input dir")
	cmd.PersistentFlags().StringVarP(&cfg.out, "out", "o", "", "output dir")
	cmd.PersistentFlags().StringVar(&cfg.logLevel, "log-level", "warn", "log level")
	cmd.PersistentFlags().Float64Var(&cfg.roll, "roll", 0, "rotation around x in radians")
	cmd.PersistentFlags().Float64Var(&cfg.pitch, "pitch", 0, "rotation around y in radians")
	cmd.PersistentFlags().Float64Var(&cfg.yaw, "yaw", 0, "rotation around z in radians")

	cmd.MarkPersistentFlagRequired("in")
}

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func tranPcdFiles() (err error) {
	if cfg.out == "" {
		cfg.out = cfg.in
	}
	return UpdateDirPcd(cfg.in, cfg.out, cloud.NewTransform(cfg.roll, cfg.pitch, cfg.yaw))
}

// UpdateDirPcd rewrites every .pcd in sourceDir into outDir. The whole
// input is decoded before the output is created, so sourceDir may equal
// outDir.
func UpdateDirPcd(sourceDir, outDir string, tr cloud.Transform) (err error) {
	ds, err := os.ReadDir(sourceDir)
	if err != nil {
		return err
	}
	for _, d := range ds {
		fn := d.Name()
		if filepath.Ext(fn) != ".pcd" {
			continue
		}
		src := filepath.Join(sourceDir, fn)
		out := filepath.Join(outDir, fn)

		res, err := load.Open(context.Background(), src, load.Options{Format: load.FormatPCD, Transform: tr})
		if err != nil {
			return fmt.Errorf("%s: %w", src, err)
		}
		if err = writePcd(out, res); err != nil {
			return fmt.Errorf("%s: %w", out, err)
		}
		fmt.Printf("UpdatePcd %s (%s, %d points) => %s\n", src, res.Header.Data, res.Sink.Len(), out)
	}
	return
}

func writePcd(out string, res *load.Result) (err error) {
	pcdf, err := os.Create(out)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := pcdf.Close(); err == nil {
			err = cerr
		}
	}()
	return pcd.Encode(pcdf, res.Sink.Points(), res.Sink.PointColors())
}
