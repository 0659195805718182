package main

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/DoyleJ11/drawing-board/internal/client"
	"github.com/DoyleJ11/drawing-board/internal/drawing"
	"github.com/DoyleJ11/drawing-board/internal/export"
	"github.com/spf13/cobra"
)

var errBadColor = errors.New("colour must be #rrggbb or #rrggbbaa")

func parseColor(s string) (drawing.Color, error) {
	s = strings.TrimPrefix(s, "#")
	if len(s) != 6 && len(s) != 8 {
		return drawing.Color{}, errBadColor
	}
	b, err := hex.DecodeString(s)
	if err != nil {
		return drawing.Color{}, errBadColor
	}
	c := drawing.RGB(b[0], b[1], b[2])
	if len(b) == 4 {
		c.Alpha = b[3]
	}
	return c, nil
}

// parsePoint reads "x,y".
func parsePoint(s string) (drawing.Position, error) {
	xs, ys, ok := strings.Cut(s, ",")
	if !ok {
		return drawing.Position{}, fmt.Errorf("point %q must be x,y", s)
	}
	x, err := strconv.Atoi(strings.TrimSpace(xs))
	if err != nil {
		return drawing.Position{}, fmt.Errorf("point %q: %w", s, err)
	}
	y, err := strconv.Atoi(strings.TrimSpace(ys))
	if err != nil {
		return drawing.Position{}, fmt.Errorf("point %q: %w", s, err)
	}
	return drawing.Position{X: x, Y: y}, nil
}

func newSnapshotCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "snapshot FILE",
		Short: "Save the board as a PNG or PDF, chosen by extension",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := args[0]
			ext := strings.ToLower(filepath.Ext(path))
			if ext != ".png" && ext != ".pdf" {
				return fmt.Errorf("unsupported snapshot format %q", ext)
			}

			return g.edit(cmd, func(_ context.Context, c *client.Client) error {
				settings, _ := c.Replica().Settings()
				res, err := export.Render(settings, c.Replica().Instructions())
				if err != nil {
					return err
				}

				f, err := os.Create(path)
				if err != nil {
					return err
				}
				if ext == ".pdf" {
					err = export.PDF(f, res, g.board)
				} else {
					err = export.PNG(f, res)
				}
				if cerr := f.Close(); err == nil {
					err = cerr
				}
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "wrote %s (%d instructions)\n", path, len(c.Replica().Instructions()))
				return nil
			})
		},
	}
}

func newFillCmd(g *globals) *cobra.Command {
	var color string
	cmd := &cobra.Command{
		Use:   "fill X,Y",
		Short: "Flood fill the region around a point",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			pos, err := parsePoint(args[0])
			if err != nil {
				return err
			}
			c, err := parseColor(color)
			if err != nil {
				return err
			}
			return g.edit(cmd, func(ctx context.Context, cl *client.Client) error {
				return cl.Fill(ctx, pos, c)
			})
		},
	}
	cmd.Flags().StringVarP(&color, "color", "c", "#000000", "fill colour")
	return cmd
}

func newStrokeCmd(g *globals) *cobra.Command {
	var (
		color  string
		weight float64
	)
	cmd := &cobra.Command{
		Use:   "stroke X,Y [X,Y...]",
		Short: "Draw a polyline through the given points",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			points := make([]drawing.Position, 0, len(args))
			for _, a := range args {
				p, err := parsePoint(a)
				if err != nil {
					return err
				}
				points = append(points, p)
			}
			c, err := parseColor(color)
			if err != nil {
				return err
			}
			return g.edit(cmd, func(ctx context.Context, cl *client.Client) error {
				return cl.Stroke(ctx, c, weight, points...)
			})
		},
	}
	cmd.Flags().StringVarP(&color, "color", "c", "#000000", "stroke colour")
	cmd.Flags().Float64VarP(&weight, "weight", "w", drawing.DefaultSettings().WeightSliderDefault, "stroke weight, clamped by the server")
	return cmd
}

func newUndoCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "undo",
		Short: "Remove the most recent instruction",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return g.edit(cmd, func(ctx context.Context, c *client.Client) error {
				return c.Undo(ctx)
			})
		},
	}
}

func newResetCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "reset",
		Short: "Clear the board for everyone",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return g.edit(cmd, func(ctx context.Context, c *client.Client) error {
				return c.Reset(ctx)
			})
		},
	}
}
