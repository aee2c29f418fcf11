/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * Licensed under the Apache License, Version 2.0.
 */

package main

import (
	"bytes"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"cardcomposer/internal/assets"
	"cardcomposer/internal/catalog"
	"cardcomposer/internal/compositor"
	"cardcomposer/internal/config"
	"cardcomposer/internal/crash"
	"cardcomposer/internal/domain"
	"cardcomposer/internal/export"
	applog "cardcomposer/internal/log"
	"cardcomposer/internal/recipe"
	"cardcomposer/internal/session"
	"cardcomposer/internal/textlayout"
	"cardcomposer/internal/thumbcache"
	"cardcomposer/internal/version"
)

// app bundles what every command needs once the config is loaded.
type app struct {
	cfg    config.AppConfig
	log    *slog.Logger
	stdout io.Writer
	remote *assets.HTTPResolver
	res    assets.Resolver
	cat    *catalog.Catalog
	fonts  *textlayout.FontLibrary
}

func run(ctx context.Context, args []string) (code int) {
	// environment defaults until the config is read
	applog.Init(applog.FromEnv())
	var sess *session.Session
	crashOpts := &crash.Options{
		Dir: config.Defaults().Cache.Dir,
		Details: func() map[string]string {
			d := map[string]string{"command": strings.Join(args, " ")}
			if sess != nil {
				if t := sess.Store().Template(); t != nil {
					d["template"] = t.ID
				}
				d["revision"] = strconv.FormatUint(sess.Store().Revision(), 10)
			}
			return d
		},
	}
	defer crash.Recover(crashOpts)

	if len(args) == 0 {
		usage()
		return 2
	}
	cmd := args[0]
	switch cmd {
	case "version", "--version", "-v":
		fmt.Println("Card Composer")
		fmt.Println(version.String())
		return 0
	case "help", "-h", "--help":
		usage()
		return 0
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		return 1
	}
	applog.Init(applog.Options{
		Level:     cfg.Logging.Level,
		Format:    cfg.Logging.Format,
		AddSource: cfg.Logging.Source,
		File:      cfg.Logging.File,
	})
	ctx = applog.ContextWith(ctx, slog.String("cmd", cmd))

	if cfg.Cache.Dir != "" {
		crashOpts.Dir = cfg.Cache.Dir
	}

	a, err := newApp(cfg)
	if err != nil {
		a.log.Error("setup failed", slog.Any("err", err))
		fmt.Fprintln(os.Stderr, "Error:", err)
		return 1
	}

	switch cmd {
	case "templates":
		err = a.templates()
	case "config":
		err = a.config(args[1:])
	case "thumbs":
		err = a.thumbs(ctx, args[1:])
	case "render":
		err = a.render(ctx, args[1:], &sess)
	case "compose":
		err = a.compose(ctx, args[1:], &sess)
	default:
		fmt.Println("unknown command:", cmd)
		usage()
		return 2
	}
	if sess != nil {
		sess.Close()
	}
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		a.log.ErrorContext(ctx, "command failed", slog.Any("err", err))
		fmt.Fprintln(os.Stderr, "Error:", err)
		return 1
	}
	return 0
}

func newApp(cfg config.AppConfig) (*app, error) {
	a := &app{cfg: cfg, log: applog.WithComponent("cli"), stdout: os.Stdout}

	a.remote = assets.NewHTTPResolver(cfg.Assets.BaseURL, cfg.Assets.Timeout())
	local := assets.ChainResolver{}
	if cfg.Assets.TemplatesDir != "" {
		local = append(local, assets.DirResolver{Root: cfg.Assets.TemplatesDir})
	}
	if cfg.Assets.BaseURL != "" {
		local = append(local, a.remote)
	}
	a.res = assets.MuxResolver{Local: local, Remote: a.remote}

	a.cat = catalog.Default()
	if cfg.Assets.Catalog != "" {
		c, err := catalog.Load(cfg.Assets.Catalog)
		if err != nil {
			return a, err
		}
		a.cat = c
	}

	a.fonts = textlayout.NewFontLibrary()
	for family, path := range map[domain.FontFamily]string{
		domain.FamilyPlayfairDisplay: cfg.Fonts.PlayfairDisplay,
		domain.FamilyInter:           cfg.Fonts.Inter,
	} {
		if path == "" {
			continue
		}
		if err := a.fonts.LoadTTF(family, path); err != nil {
			return a, err
		}
		a.log.Debug("font loaded", slog.String("family", string(family)), slog.String("path", path))
	}
	return a, nil
}

func (a *app) newSession(outDir string, thumbs *thumbcache.Cache) *session.Session {
	return session.New(session.Options{
		PreviewMaxW: a.cfg.Editor.PreviewMaxW,
		PreviewMaxH: a.cfg.Editor.PreviewMaxH,
	}, session.Deps{
		Catalog:    a.cat,
		Resolver:   a.res,
		Compositor: compositor.New(a.fonts),
		Saver:      export.DirSaver{Dir: outDir},
		Notifier:   consoleNotifier{w: a.stdout},
		Thumbs:     thumbs,
	})
}

func (a *app) templates() error {
	for _, e := range a.cat.Entries() {
		fmt.Fprintf(a.stdout, "%-12s %-20s %s\n", e.ID, e.Name, e.Img)
	}
	return nil
}

func (a *app) config(args []string) error {
	if len(args) > 0 && args[0] == "save" {
		if err := config.Save(a.cfg); err != nil {
			return err
		}
		p, _ := config.ConfigPath()
		fmt.Fprintln(a.stdout, "Saved config to", p)
		return nil
	}
	out, err := yaml.Marshal(a.cfg)
	if err != nil {
		return err
	}
	_, err = a.stdout.Write(out)
	return err
}

func (a *app) thumbs(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("thumbs", flag.ContinueOnError)
	w := fs.Int("w", 160, "thumbnail width")
	h := fs.Int("h", 228, "thumbnail height")
	out := fs.String("out", "thumbs", "output directory")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := os.MkdirAll(*out, 0o755); err != nil {
		return err
	}

	cache, err := thumbcache.Open(a.cfg.Cache.Dir, a.cfg.Cache.MaxBytes)
	if err != nil {
		a.log.Warn("thumbnail cache unavailable, rendering uncached", slog.Any("err", err))
		cache = nil
	} else {
		defer cache.Close()
	}
	sess := a.newSession(*out, cache)
	defer sess.Close()

	var failed int
	for _, e := range a.cat.Entries() {
		data, err := sess.Thumbnail(ctx, e.ID, *w, *h)
		if err != nil {
			failed++
			a.log.WarnContext(ctx, "thumbnail failed", slog.String("template", e.ID), slog.Any("err", err))
			continue
		}
		path := filepath.Join(*out, e.ID+".png")
		if err := os.WriteFile(path, data, 0o644); err != nil {
			return err
		}
		fmt.Fprintln(a.stdout, path)
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d thumbnails failed", failed, a.cat.Len())
	}
	return nil
}

// cardFlags are shared by render and compose.
type cardFlags struct {
	template string
	photo    string
	format   string
	out      string
	preview  bool
}

func (a *app) bindCardFlags(fs *flag.FlagSet, cf *cardFlags) {
	fs.StringVar(&cf.template, "template", "", "template id (default: first catalog entry)")
	fs.StringVar(&cf.photo, "photo", "", "photo file or http(s) URL")
	fs.StringVar(&cf.format, "format", a.cfg.Export.Format, "png or jpeg")
	fs.StringVar(&cf.out, "out", a.cfg.Export.OutDir, "output directory")
	fs.BoolVar(&cf.preview, "preview", false, "also write the preview-size render")
}

func (a *app) render(ctx context.Context, args []string, sp **session.Session) error {
	var cf cardFlags
	fs := flag.NewFlagSet("render", flag.ContinueOnError)
	a.bindCardFlags(fs, &cf)
	text := fs.String("text", "", "replace the default greeting")
	if err := fs.Parse(args); err != nil {
		return err
	}
	f, err := export.ParseFormat(cf.format)
	if err != nil {
		return err
	}

	sess := a.newSession(cf.out, nil)
	*sp = sess
	if err := a.prepare(ctx, sess, cf.template, cf.photo); err != nil {
		return err
	}
	if *text != "" {
		if err := sess.Store().UpdateTextLayer(domain.MainTextLayerID, domain.TextPatch{Text: text}); err != nil {
			return err
		}
	}
	return a.finish(ctx, sess, cf, []export.Format{f})
}

func (a *app) compose(ctx context.Context, args []string, sp **session.Session) error {
	var path string
	if len(args) > 0 && !strings.HasPrefix(args[0], "-") {
		path, args = args[0], args[1:]
	}
	var cf cardFlags
	fs := flag.NewFlagSet("compose", flag.ContinueOnError)
	a.bindCardFlags(fs, &cf)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if path == "" {
		path = fs.Arg(0)
	}
	if path == "" {
		return errors.New("compose requires a recipe file")
	}
	rec, err := recipe.Load(path)
	if err != nil {
		return err
	}

	// flags win over the recipe
	tpl, photo := rec.Template, rec.Photo
	if cf.template != "" {
		tpl = cf.template
	}
	if cf.photo != "" {
		photo = cf.photo
	}
	formats := []export.Format{}
	for _, s := range rec.Export {
		f, err := export.ParseFormat(s)
		if err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
		formats = append(formats, f)
	}
	if len(formats) == 0 {
		f, err := export.ParseFormat(cf.format)
		if err != nil {
			return err
		}
		formats = append(formats, f)
	}

	sess := a.newSession(cf.out, nil)
	*sp = sess
	if err := a.prepare(ctx, sess, tpl, photo); err != nil {
		return err
	}
	if err := rec.Apply(ctx, sess); err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	return a.finish(ctx, sess, cf, formats)
}

// prepare loads the template and, when given, the photo.
func (a *app) prepare(ctx context.Context, sess *session.Session, tpl, photo string) error {
	if tpl == "" {
		first, ok := a.cat.First()
		if !ok {
			return errors.New("template catalog is empty")
		}
		tpl = first.ID
	}
	if err := sess.SelectTemplate(ctx, tpl).Wait(ctx); err != nil {
		return fmt.Errorf("template %s: %w", tpl, err)
	}
	if photo == "" {
		return nil
	}
	data, err := a.readPhoto(ctx, photo)
	if err != nil {
		return err
	}
	if err := sess.UploadPhoto(ctx, data).Wait(ctx); err != nil {
		return fmt.Errorf("photo %s: %w", photo, err)
	}
	return nil
}

func (a *app) readPhoto(ctx context.Context, ref string) ([]byte, error) {
	l := strings.ToLower(ref)
	if strings.HasPrefix(l, "http://") || strings.HasPrefix(l, "https://") {
		return assets.ReadAll(ctx, a.remote, ref)
	}
	return os.ReadFile(ref)
}

func (a *app) finish(ctx context.Context, sess *session.Session, cf cardFlags, formats []export.Format) error {
	if err := os.MkdirAll(cf.out, 0o755); err != nil {
		return err
	}
	saver := export.DirSaver{Dir: cf.out}
	if cf.preview {
		img, err := sess.Preview()
		if err != nil {
			return err
		}
		var buf bytes.Buffer
		if err := export.Encode(&buf, img, export.FormatPNG); err != nil {
			return err
		}
		res := export.Result{
			Filename: export.BaseName + "-preview.png",
			Format:   export.FormatPNG,
			Data:     buf.Bytes(),
			Width:    img.Bounds().Dx(),
			Height:   img.Bounds().Dy(),
		}
		if err := saver.Save(ctx, res); err != nil {
			return err
		}
		fmt.Fprintln(a.stdout, saver.Path(res))
	}
	for _, f := range formats {
		res, err := sess.Export(ctx, f)
		if err != nil {
			return err
		}
		a.log.InfoContext(ctx, "card exported", slog.String("file", saver.Path(res)),
			slog.Int("w", res.Width), slog.Int("h", res.Height), slog.Int("bytes", len(res.Data)))
		fmt.Fprintln(a.stdout, saver.Path(res))
	}
	return nil
}

// consoleNotifier prints session toasts for the terminal user.
type consoleNotifier struct {
	w io.Writer
}

func (c consoleNotifier) Notify(n session.Notification) {
	prefix := "ok"
	if n.Level == session.LevelError {
		prefix = "error"
	}
	if n.Description == "" {
		fmt.Fprintf(c.w, "[%s] %s\n", prefix, n.Title)
		return
	}
	fmt.Fprintf(c.w, "[%s] %s %s\n", prefix, n.Title, n.Description)
}
