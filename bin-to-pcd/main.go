// Command bin-to-pcd converts .bin point clouds, in a directory or inside a
// zip archive, to binary .pcd files.
package main

import (
	"archive/zip"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"pcstream/pkg/load"
	"pcstream/pkg/pcd"
	"pcstream/pkg/stream"

	"github.com/dustin/go-humanize"
	logging "github.com/ipfs/go-log/v2"
	"github.com/spf13/cobra"
)

var cfg struct {
	in       string
	out      string
	logLevel string
}

var cmd = &cobra.Command{
	Use:   "bin-to-pcd",
	Short: "Convert .bin point clouds to .pcd",
	RunE: func(cmd *cobra.Command, args []string) (err error) {
		if err = logging.SetLogLevel("*", cfg.logLevel); err != nil {
			return
		}
		if strings.HasSuffix(cfg.in, ".zip") {
			return tranZipFile()
		}
		return tranBinFiles()
	},
}

func init() {
	cmd.PersistentFlags().StringVarP(&cfg.in, "in", "i", "", "input zipFile or dir")
	cmd.PersistentFlags().StringVarP(&cfg.out, "out", "o", "", "output zipFile or dir")
	cmd.PersistentFlags().StringVar(&cfg.logLevel, "log-level", "warn", "log level")

	cmd.MarkPersistentFlagRequired("in")
}

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func tranBinFiles() (err error) {
	if cfg.out == "" {
		cfg.out = cfg.in
	}
	return TransDirBinToPcd(cfg.in, cfg.out)
}

// TransBinToPcd streams one .bin from r and writes it to w as .pcd.
func TransBinToPcd(r io.Reader, size int64, w io.Writer) (int, error) {
	res, err := load.Run(context.Background(), stream.NewReaderSource(r, size, stream.DefaultChunkSize), load.Options{
		Format: load.FormatBin,
	})
	if err != nil {
		return 0, err
	}
	return res.Sink.Len(), pcd.Encode(w, res.Sink.Points(), res.Sink.PointColors())
}

func tranZipFile() (err error) {
	if cfg.out == "" {
		base := filepath.Base(cfg.in)
		ext := filepath.Ext(base)
		cfg.out = strings.TrimSuffix(base, ext) + "-pcd" + ext
	}
	if cfg.out == cfg.in {
		return errors.New("input file can not sample as output file")
	}
	outFile, err := os.Create(cfg.out)
	if err != nil {
		return err
	}
	defer outFile.Close()
	outZip := zip.NewWriter(outFile)
	defer outZip.Close()
	inZip, err := zip.OpenReader(cfg.in)
	if err != nil {
		return err
	}
	defer inZip.Close()
	for _, f := range inZip.File {
		if filepath.Ext(f.Name) == ".bin" {
			err = func() (err error) {
				binr, err := f.Open()
				if err != nil {
					return err
				}
				defer binr.Close()
				newName := strings.TrimSuffix(f.Name, ".bin") + ".pcd"
				w, err := outZip.Create(newName)
				if err != nil {
					return
				}
				n, err := TransBinToPcd(binr, int64(f.UncompressedSize64), w)
				if err != nil {
					return fmt.Errorf("%s: %w", f.Name, err)
				}
				fmt.Printf("TransBinToPcd %s => %s (%s points)\n", f.Name, newName, humanize.Comma(int64(n)))
				return
			}()
			if err != nil {
				return
			}
		} else {
			w, err := outZip.CreateRaw(&f.FileHeader)
			if err != nil {
				return err
			}
			r, err := f.OpenRaw()
			if err != nil {
				return err
			}
			_, err = io.Copy(w, r)
			if err != nil {
				return err
			}
		}
	}
	return
}

func TransDirBinToPcd(sourceDir, outDir string) (err error) {
	ds, err := os.ReadDir(sourceDir)
	if err != nil {
		return err
	}
	for _, d := range ds {
		fn := d.Name()
		if filepath.Ext(fn) != ".bin" {
			continue
		}
		src := filepath.Join(sourceDir, fn)
		out := filepath.Join(outDir, strings.TrimSuffix(fn, ".bin")+".pcd")
		if err = transFile(src, out); err != nil {
			return fmt.Errorf("%s: %w", src, err)
		}
	}
	return
}

func transFile(src, out string) (err error) {
	binf, err := os.Open(src)
	if err != nil {
		return err
	}
	defer binf.Close()
	fi, err := binf.Stat()
	if err != nil {
		return err
	}
	pcdf, err := os.Create(out)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := pcdf.Close(); err == nil {
			err = cerr
		}
	}()
	n, err := TransBinToPcd(binf, fi.Size(), pcdf)
	if err != nil {
		return err
	}
	fmt.Printf("TransBinToPcd %s => %s (%s points, %s)\n", src, out, humanize.Comma(int64(n)), humanize.IBytes(uint64(fi.Size())))
	return nil
}
