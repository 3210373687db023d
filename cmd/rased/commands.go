package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	rased "github.com/goliatone/go-rased"
	"github.com/goliatone/go-rased/internal/app"
	"github.com/goliatone/go-rased/pkg/activity"
	"github.com/goliatone/go-rased/pkg/migrate"
	"github.com/goliatone/go-rased/pkg/printer"
	"github.com/goliatone/go-rased/pkg/transfer"
	"github.com/goliatone/go-rased/schema/jsonschema"
)

var errUsage = errors.New("usage")

type env struct {
	app *app.App
	out io.Writer
	now func() time.Time
}

type command struct {
	usage string
	// standalone commands run without opening the storage backend.
	standalone bool
	run        func(ctx context.Context, e *env, args []string) error
}

var commands = map[string]command{
	"show":    {usage: "show [-json]", run: cmdShow},
	"set":     {usage: "set [-json] <path> <value>", run: cmdSet},
	"teacher": {usage: "teacher <nom|ecole|type_ecole|classe> <value>", run: cmdTeacher},
	"add":     {usage: "add", run: cmdAdd},
	"select":  {usage: "select <student-id>", run: cmdSelect},
	"delete":  {usage: "delete <student-id>", run: cmdDelete},
	"next":    {usage: "next", run: cmdNext},
	"back":    {usage: "back", run: cmdBack},
	"goto":    {usage: "goto <step>", run: cmdGoTo},
	"export":  {usage: "export [-scope student|session] [-dir path]", run: cmdExport},
	"import":  {usage: "import <file|->", run: cmdImport},
	"print":   {usage: "print [-student id] [-o file.html]", run: cmdPrint},
	"reset":   {usage: "reset", run: cmdReset},
	"schema":  {usage: "schema [-scope session|student]", standalone: true, run: cmdSchema},
	"serve":   {usage: "serve [-addr host:port]", run: cmdServe},
	"upgrade": {usage: "upgrade", run: cmdUpgrade},
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	global := flag.NewFlagSet("rased", flag.ContinueOnError)
	global.SetOutput(stderr)
	configPath := global.String("config", "", "path to rased.yaml")
	global.Usage = func() { printUsage(stderr) }
	if err := global.Parse(args); err != nil {
		return 2
	}
	rest := global.Args()
	if len(rest) == 0 {
		printUsage(stderr)
		return 2
	}
	cmd, ok := commands[rest[0]]
	if !ok {
		fmt.Fprintf(stderr, "unknown command %q\n", rest[0])
		printUsage(stderr)
		return 2
	}

	e := &env{out: stdout, now: time.Now}
	if !cmd.standalone {
		a, err := app.New(ctx, *configPath)
		if err != nil {
			fmt.Fprintf(stderr, "init: %v\n", err)
			return 1
		}
		defer func() {
			if err := a.Close(); err != nil {
				fmt.Fprintf(stderr, "close: %v\n", err)
			}
		}()
		e.app = a
	}

	if err := cmd.run(ctx, e, rest[1:]); err != nil {
		if errors.Is(err, errUsage) || errors.Is(err, flag.ErrHelp) {
			fmt.Fprintf(stderr, "usage: rased %s\n", cmd.usage)
			return 2
		}
		fmt.Fprintf(stderr, "%s: %v\n", rest[0], err)
		return 1
	}
	return 0
}

func printUsage(w io.Writer) {
	names := make([]string, 0, len(commands))
	for name := range commands {
		names = append(names, name)
	}
	sort.Strings(names)
	fmt.Fprintln(w, "usage: rased [-config path] <command> [args]")
	for _, name := range names {
		fmt.Fprintf(w, "  %s\n", commands[name].usage)
	}
}

func newFlags(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	return fs
}

func cmdShow(_ context.Context, e *env, args []string) error {
	fs := newFlags("show")
	asJSON := fs.Bool("json", false, "print the session document")
	if err := fs.Parse(args); err != nil {
		return err
	}
	snapshot := e.app.Store.Snapshot()
	if *asJSON {
		return writeJSON(e.out, snapshot)
	}

	step := e.app.Store.Step()
	fmt.Fprintf(e.out, "Enseignant : %s\n", orDash(snapshot.Teacher.Name))
	for _, rec := range snapshot.Students {
		marker := " "
		if rec.ID == snapshot.CurrentStudentID {
			marker = "*"
		}
		fmt.Fprintf(e.out, "%s %s  %s\n", marker, rec.ID, rec.DisplayName())
	}
	fmt.Fprintf(e.out, "Étape %d/%d : %s\n", step+1, rased.StepCount, rased.StepTitles[step])
	printBlockers(e)
	fmt.Fprintf(e.out, "Statut : %s\n", e.app.Store.Status())
	if err := e.app.Store.LastError(); err != nil {
		fmt.Fprintf(e.out, "Erreur de sauvegarde : %v\n", err)
	}
	return nil
}

func printBlockers(e *env) {
	missing, rules := e.app.Store.Blockers()
	for _, field := range missing {
		fmt.Fprintf(e.out, "  manquant : %s\n", field)
	}
	for _, rule := range rules {
		msg := rule.Message
		if msg == "" {
			msg = rule.Expr
		}
		fmt.Fprintf(e.out, "  règle : %s\n", msg)
	}
}

func cmdSet(ctx context.Context, e *env, args []string) error {
	fs := newFlags("set")
	asJSON := fs.Bool("json", false, "decode value as JSON")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 2 {
		return errUsage
	}
	value, err := parseValue(fs.Arg(1), *asJSON)
	if err != nil {
		return err
	}
	return e.app.Store.UpdatePath(ctx, fs.Arg(0), value)
}

// parseValue keeps plain text as a string. Objects, arrays, booleans and
// null are decoded, as is anything when forced.
func parseValue(raw string, force bool) (any, error) {
	trimmed := strings.TrimSpace(raw)
	decode := force
	switch {
	case strings.HasPrefix(trimmed, "{"), strings.HasPrefix(trimmed, "["):
		decode = true
	case trimmed == "true", trimmed == "false", trimmed == "null":
		decode = true
	}
	if !decode {
		return raw, nil
	}
	var value any
	if err := json.Unmarshal([]byte(trimmed), &value); err != nil {
		return nil, fmt.Errorf("%w: %v", rased.ErrInvalidValue, err)
	}
	return value, nil
}

func cmdTeacher(ctx context.Context, e *env, args []string) error {
	if len(args) != 2 {
		return errUsage
	}
	return e.app.Store.UpdateTeacherField(ctx, args[0], args[1])
}

func cmdAdd(ctx context.Context, e *env, _ []string) error {
	rec := e.app.Store.AddStudent(ctx)
	fmt.Fprintln(e.out, rec.ID)
	return nil
}

func cmdSelect(ctx context.Context, e *env, args []string) error {
	if len(args) != 1 {
		return errUsage
	}
	if !e.app.Store.SelectStudent(ctx, args[0]) {
		return fmt.Errorf("%w: %s", rased.ErrStudentNotFound, args[0])
	}
	return nil
}

func cmdDelete(ctx context.Context, e *env, args []string) error {
	if len(args) != 1 {
		return errUsage
	}
	if !e.app.Store.DeleteStudent(ctx, args[0]) {
		return fmt.Errorf("%w: %s", rased.ErrStudentNotFound, args[0])
	}
	return nil
}

func cmdNext(ctx context.Context, e *env, _ []string) error {
	if err := e.app.Store.Next(ctx); err != nil {
		printBlockers(e)
		return err
	}
	return printStep(e)
}

func cmdBack(ctx context.Context, e *env, _ []string) error {
	e.app.Store.Back(ctx)
	return printStep(e)
}

func cmdGoTo(ctx context.Context, e *env, args []string) error {
	if len(args) != 1 {
		return errUsage
	}
	step, err := strconv.Atoi(args[0])
	if err != nil {
		return errUsage
	}
	if err := e.app.Store.GoTo(ctx, step); err != nil {
		printBlockers(e)
		return err
	}
	return printStep(e)
}

func printStep(e *env) error {
	step := e.app.Store.Step()
	_, err := fmt.Fprintf(e.out, "%d %s\n", step, rased.StepTitles[step])
	return err
}

func cmdExport(ctx context.Context, e *env, args []string) error {
	cfg := e.app.Config.Export
	fs := newFlags("export")
	scopeFlag := fs.String("scope", string(transfer.ScopeSession), "student or session")
	dir := fs.String("dir", cfg.Dir, "download directory")
	if err := fs.Parse(args); err != nil {
		return err
	}
	scope, err := transfer.ParseScope(*scopeFlag)
	if err != nil {
		return err
	}
	doc, err := transfer.Build(e.app.Store.Snapshot(), scope, cfg.Prefix, e.now())
	if err != nil {
		return err
	}
	exporter := transfer.Exporter{
		Downloader: transfer.FileDownloader{Dir: *dir},
		Clipboard:  transfer.CommandClipboard{Command: cfg.Clipboard},
		Fallback:   transfer.WriterFallback{W: e.out},
		Logger:     e.app.Log,
	}
	result, err := exporter.Export(ctx, doc)
	if err != nil {
		return err
	}
	e.app.Store.Record(ctx, activity.VerbSessionExported, map[string]any{
		"scope": string(scope),
		"tier":  result.Tier,
	})
	if result.Tier == "download" {
		fmt.Fprintln(e.out, filepath.Join(*dir, result.Filename))
	}
	return nil
}

func cmdImport(ctx context.Context, e *env, args []string) error {
	if len(args) != 1 {
		return errUsage
	}
	name := args[0]
	var r io.Reader = os.Stdin
	if name != "-" {
		f, err := os.Open(name)
		if err != nil {
			return err
		}
		defer f.Close()
		r = f
	}
	imported, err := transfer.Import(ctx, e.app.Store, filepath.Base(name), r)
	if err != nil {
		return err
	}
	fmt.Fprintf(e.out, "%d élève(s) importé(s)\n", len(imported.Students))
	return nil
}

func cmdPrint(ctx context.Context, e *env, args []string) error {
	fs := newFlags("print")
	studentID := fs.String("student", "", "student id, defaults to the current one")
	output := fs.String("o", "", "output file, defaults to stdout")
	if err := fs.Parse(args); err != nil {
		return err
	}
	snapshot := e.app.Store.Snapshot()
	rec, ok := snapshot.Current()
	if *studentID != "" {
		rec, ok = snapshot.Student(*studentID)
	}
	if !ok {
		return fmt.Errorf("%w: %s", rased.ErrStudentNotFound, *studentID)
	}
	html, err := printer.Render(rec, e.app.PrintOptions(ctx, rec))
	if err != nil {
		return err
	}
	if *output == "" {
		_, err = io.WriteString(e.out, html)
	} else {
		err = os.WriteFile(*output, []byte(html), 0o600)
	}
	if err != nil {
		return err
	}
	e.app.Store.Record(ctx, activity.VerbStudentPrinted, map[string]any{"student_id": rec.ID})
	return nil
}

func cmdReset(ctx context.Context, e *env, _ []string) error {
	return e.app.Store.Reset(ctx)
}

func cmdSchema(_ context.Context, e *env, args []string) error {
	fs := newFlags("schema")
	scope := fs.String("scope", string(jsonschema.ScopeSession), "session or student")
	if err := fs.Parse(args); err != nil {
		return err
	}
	doc, err := jsonschema.Generate(jsonschema.Scope(*scope))
	if err != nil {
		return err
	}
	return writeJSON(e.out, doc)
}

func cmdServe(ctx context.Context, e *env, args []string) error {
	fs := newFlags("serve")
	addr := fs.String("addr", e.app.Config.Server.Addr, "loopback listen address")
	if err := fs.Parse(args); err != nil {
		return err
	}
	return e.app.Server().Run(ctx, *addr)
}

func cmdUpgrade(ctx context.Context, e *env, _ []string) error {
	upgraded, count := migrate.UpgradeSession(e.app.Store.Snapshot())
	if count > 0 {
		e.app.Store.Replace(ctx, upgraded)
	}
	fmt.Fprintf(e.out, "%d fiche(s) mise(s) à jour\n", count)
	return nil
}

func writeJSON(w io.Writer, value any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(value)
}

func orDash(s string) string {
	if strings.TrimSpace(s) == "" {
		return "—"
	}
	return s
}
