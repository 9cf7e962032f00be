// fogconv moves a scene's saved fog exploration in and out of the database.
//
//	fogconv export <scene> <out.png> [--positions positions.json]
//	fogconv import <scene> <in.png> [--positions positions.json]
//	fogconv reset  <scene>
//	fogconv stat   <scene>
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/l1jgo/vision/internal/config"
	"github.com/l1jgo/vision/internal/fog"
	"github.com/l1jgo/vision/internal/persist"
)

var (
	configPath    string
	positionsPath string
	timeout       time.Duration
)

var rootCmd = &cobra.Command{
	Use:           "fogconv",
	Short:         "Export, import and reset saved fog exploration",
	SilenceUsage:  true,
	SilenceErrors: true,
}

var exportCmd = &cobra.Command{
	Use:   "export SCENE OUT.png",
	Short: "Write a scene's exploration image (and positions) to disk",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withRepo(cmd.Context(), func(ctx context.Context, repo *persist.FogRepo) error {
			return export(ctx, repo, args[0], args[1], positionsPath)
		})
	},
}

var importCmd = &cobra.Command{
	Use:   "import SCENE IN.png",
	Short: "Replace a scene's exploration with an image (and positions) from disk",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withRepo(cmd.Context(), func(ctx context.Context, repo *persist.FogRepo) error {
			return importFog(ctx, repo, args[0], args[1], positionsPath)
		})
	},
}

var resetCmd = &cobra.Command{
	Use:   "reset SCENE",
	Short: "Delete a scene's saved exploration",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withRepo(cmd.Context(), func(ctx context.Context, repo *persist.FogRepo) error {
			if err := repo.Delete(ctx, args[0]); err != nil {
				return err
			}
			fmt.Printf("Reset fog for %s\n", args[0])
			return nil
		})
	},
}

var statCmd = &cobra.Command{
	Use:   "stat SCENE",
	Short: "Summarize a scene's saved exploration",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withRepo(cmd.Context(), func(ctx context.Context, repo *persist.FogRepo) error {
			return stat(ctx, repo, args[0])
		})
	},
}

func init() {
	defaultConfig := "config/vision.toml"
	if p := os.Getenv("VISION_CONFIG"); p != "" {
		defaultConfig = p
	}
	rootCmd.PersistentFlags().StringVar(&configPath, "config", defaultConfig,
		"Path to vision.toml (env VISION_CONFIG)")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", time.Minute,
		"Deadline for the whole command")
	for _, c := range []*cobra.Command{exportCmd, importCmd} {
		c.Flags().StringVar(&positionsPath, "positions", "",
			"JSON file holding the per-token positions")
	}
	rootCmd.AddCommand(exportCmd, importCmd, resetCmd, statCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// withRepo opens the configured database, migrates it and hands fn a repo.
func withRepo(parent context.Context, fn func(context.Context, *persist.FogRepo) error) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if cfg.Database.DSN == "" {
		return fmt.Errorf("%s: database.dsn is empty", configPath)
	}
	if parent == nil {
		parent = context.Background()
	}
	ctx, cancel := context.WithTimeout(parent, timeout)
	defer cancel()

	db, err := persist.NewDB(ctx, cfg.Database, zap.NewNop())
	if err != nil {
		return err
	}
	defer db.Close()
	if _, err := persist.RunMigrations(ctx, db); err != nil {
		return err
	}
	return fn(ctx, persist.NewFogRepo(db))
}

func export(ctx context.Context, repo *persist.FogRepo, sceneID, pngPath, posPath string) error {
	rec, err := repo.Load(ctx, sceneID)
	if err != nil {
		return err
	}
	if rec == nil {
		return fmt.Errorf("scene %s has no saved exploration", sceneID)
	}
	if err := os.WriteFile(pngPath, rec.Image, 0o644); err != nil {
		return err
	}
	if posPath != "" {
		out, err := json.MarshalIndent(rec.Positions, "", "  ")
		if err != nil {
			return err
		}
		if err := os.WriteFile(posPath, out, 0o644); err != nil {
			return err
		}
	}
	fmt.Printf("Exported %s: %d bytes, %d positions (saved %s)\n",
		sceneID, len(rec.Image), len(rec.Positions), rec.Timestamp.Format(time.RFC3339))
	return nil
}

func importFog(ctx context.Context, repo *persist.FogRepo, sceneID, pngPath, posPath string) error {
	img, err := os.ReadFile(pngPath)
	if err != nil {
		return err
	}
	cov, err := fog.DecodePNG(img)
	if err != nil {
		return fmt.Errorf("%s: %w", pngPath, err)
	}

	rec := &fog.Record{
		SceneID:   sceneID,
		Image:     img,
		Positions: map[string]fog.Entry{},
		Timestamp: time.Now(),
	}
	if posPath != "" {
		raw, err := os.ReadFile(posPath)
		if err != nil {
			return err
		}
		if err := json.Unmarshal(raw, &rec.Positions); err != nil {
			return fmt.Errorf("%s: %w", posPath, err)
		}
	}
	// Reject malformed keys before they reach the scene loop.
	if _, _, err := rec.Decode(); err != nil {
		return err
	}
	if err := repo.Save(ctx, rec); err != nil {
		return err
	}
	b := cov.Bounds()
	fmt.Printf("Imported %s: %dx%d image, %d positions\n", sceneID, b.Dx(), b.Dy(), len(rec.Positions))
	return nil
}

func stat(ctx context.Context, repo *persist.FogRepo, sceneID string) error {
	rec, err := repo.Load(ctx, sceneID)
	if err != nil {
		return err
	}
	if rec == nil {
		fmt.Printf("%s: no saved exploration\n", sceneID)
		return nil
	}
	cov, _, err := rec.Decode()
	if err != nil {
		return err
	}
	sum, err := persist.Checksum(rec)
	if err != nil {
		return err
	}
	if cov == nil {
		fmt.Printf("%s: no image, %d positions\n", sceneID, len(rec.Positions))
		return nil
	}
	explored := 0
	for _, a := range cov.Pix {
		if a > 0 {
			explored++
		}
	}
	b := cov.Bounds()
	fmt.Printf("%s: %dx%d image, %.1f%% explored, %d positions, checksum %x, saved %s\n",
		sceneID, b.Dx(), b.Dy(), 100*float64(explored)/float64(max(1, len(cov.Pix))),
		len(rec.Positions), sum[:8], rec.Timestamp.Format(time.RFC3339))
	return nil
}
