package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/shrimpsizemoose/gradebook/internal/app"
	"github.com/shrimpsizemoose/gradebook/internal/config"
	"github.com/shrimpsizemoose/gradebook/internal/ident"
	"github.com/shrimpsizemoose/gradebook/internal/models"
)

var errHelp = errors.New("help provided")

type commandLine struct {
	svc *app.Service
	out io.Writer
}

func printUsage(w io.Writer) {
	fmt.Fprintln(w, "Commands:")
	fmt.Fprintln(w, "  add-student -year YYYY -number DIGITS -name NAME")
	fmt.Fprintln(w, "  update-student -id FULL_NUMBER -year YYYY -number DIGITS -name NAME")
	fmt.Fprintln(w, "  delete-student -id FULL_NUMBER")
	fmt.Fprintln(w, "  students [-filter TEXT]")
	fmt.Fprintln(w, "  add-eval -id FULL_NUMBER -subject S -score N -date YYYY-MM-DD [-notes TEXT]")
	fmt.Fprintln(w, "  delete-eval -id FULL_NUMBER -subject S -score N -date YYYY-MM-DD")
	fmt.Fprintln(w, "  evals -id FULL_NUMBER")
	fmt.Fprintln(w, "  years")
	fmt.Fprintln(w, "  stats")
	fmt.Fprintln(w, "  export -out FILE [-format csv|xlsx]")
	fmt.Fprintln(w, "  import -in FILE")
	fmt.Fprintln(w, "  backup")
	fmt.Fprintln(w, "  backups")
	fmt.Fprintln(w, "  restore [-from FILE]")
	fmt.Fprintln(w, "  config show | config set KEY VALUE")
}

func (cli *commandLine) newFlagSet(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(cli.out)
	return fs
}

func (cli *commandLine) run(args []string) error {
	if len(args) < 1 {
		printUsage(cli.out)
		return errHelp
	}

	cmd, rest := args[0], args[1:]
	switch cmd {
	case "add-student":
		return cli.addStudent(rest)
	case "update-student":
		return cli.updateStudent(rest)
	case "delete-student":
		return cli.deleteStudent(rest)
	case "students":
		return cli.listStudents(rest)
	case "add-eval":
		return cli.addEvaluation(rest)
	case "delete-eval":
		return cli.deleteEvaluation(rest)
	case "evals":
		return cli.listEvaluations(rest)
	case "years":
		return cli.years()
	case "stats":
		return cli.stats()
	case "export":
		return cli.export(rest)
	case "import":
		return cli.importCSV(rest)
	case "backup":
		return cli.backup()
	case "backups":
		return cli.backups()
	case "restore":
		return cli.restore(rest)
	case "config":
		return cli.config(rest)
	default:
		printUsage(cli.out)
		return errHelp
	}
}

func (cli *commandLine) addStudent(args []string) error {
	fs := cli.newFlagSet("add-student")
	year := fs.String("year", cli.svc.DefaultYear(), "Year prefix")
	number := fs.String("number", "", "Student number without the year")
	name := fs.String("name", "", "Student name")
	if err := fs.Parse(args); err != nil {
		return errHelp
	}

	st, err := cli.svc.AddStudent(*year, *number, *name)
	if err != nil {
		return err
	}
	fmt.Fprintf(cli.out, "added %s %s\n", st.StudentNumber, st.Name)
	return nil
}

func (cli *commandLine) updateStudent(args []string) error {
	fs := cli.newFlagSet("update-student")
	id := fs.String("id", "", "Current full student number")
	year := fs.String("year", "", "New year prefix (defaults to the current one)")
	number := fs.String("number", "", "New student number without the year (defaults to the current one)")
	name := fs.String("name", "", "New name")
	if err := fs.Parse(args); err != nil {
		return errHelp
	}

	curYear, curSuffix := ident.Decompose(*id)
	if *year == "" {
		*year = curYear
	}
	if *number == "" {
		*number = curSuffix
	}
	if err := cli.svc.UpdateStudent(*id, *year, *number, *name); err != nil {
		return err
	}
	fmt.Fprintf(cli.out, "updated %s\n", ident.Compose(strings.TrimSpace(*year), strings.TrimSpace(*number)))
	return nil
}

func (cli *commandLine) deleteStudent(args []string) error {
	fs := cli.newFlagSet("delete-student")
	id := fs.String("id", "", "Full student number")
	if err := fs.Parse(args); err != nil {
		return errHelp
	}

	if err := cli.svc.DeleteStudent(*id); err != nil {
		return err
	}
	fmt.Fprintf(cli.out, "deleted %s\n", *id)
	return nil
}

func (cli *commandLine) listStudents(args []string) error {
	fs := cli.newFlagSet("students")
	filter := fs.String("filter", "", "Keep students whose number or name contains this text")
	if err := fs.Parse(args); err != nil {
		return errHelp
	}

	students, err := cli.svc.ListStudents(*filter)
	if err != nil {
		return err
	}
	tw := tabwriter.NewWriter(cli.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "NUMBER\tNAME\tCREATED\tMODIFIED")
	for _, st := range students {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", st.StudentNumber, st.Name,
			st.CreatedAt.Local().Format(models.TimestampLayout),
			st.LastModified.Local().Format(models.TimestampLayout))
	}
	return tw.Flush()
}

func (cli *commandLine) evalFlags(name string, args []string, withNotes bool) (id, subject, score, date, notes string, err error) {
	fs := cli.newFlagSet(name)
	fid := fs.String("id", "", "Full student number")
	fsubject := fs.String("subject", "", "Subject")
	fscore := fs.String("score", "", "Score between 0 and 100")
	fdate := fs.String("date", "", "Evaluation date, YYYY-MM-DD")
	var fnotes *string
	if withNotes {
		fnotes = fs.String("notes", "", "Notes")
	}
	if err := fs.Parse(args); err != nil {
		return "", "", "", "", "", errHelp
	}
	if fnotes != nil {
		notes = *fnotes
	}
	return *fid, *fsubject, *fscore, *fdate, notes, nil
}

func (cli *commandLine) addEvaluation(args []string) error {
	id, subject, score, date, notes, err := cli.evalFlags("add-eval", args, true)
	if err != nil {
		return err
	}
	ev, err := cli.svc.AddEvaluation(id, subject, score, date, notes)
	if err != nil {
		return err
	}
	fmt.Fprintf(cli.out, "added %s %s %s\n", ev.Subject, ev.ScoreText(), ev.EvaluationDate)
	return nil
}

func (cli *commandLine) deleteEvaluation(args []string) error {
	id, subject, score, date, _, err := cli.evalFlags("delete-eval", args, false)
	if err != nil {
		return err
	}
	n, err := cli.svc.DeleteEvaluation(id, subject, score, date)
	if err != nil {
		return err
	}
	fmt.Fprintf(cli.out, "deleted %d evaluation(s)\n", n)
	return nil
}

func (cli *commandLine) listEvaluations(args []string) error {
	fs := cli.newFlagSet("evals")
	id := fs.String("id", "", "Full student number")
	if err := fs.Parse(args); err != nil {
		return errHelp
	}

	evals, err := cli.svc.ListEvaluations(*id)
	if err != nil {
		return err
	}
	tw := tabwriter.NewWriter(cli.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "SUBJECT\tSCORE\tDATE\tNOTES")
	for _, ev := range evals {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", ev.Subject, ev.ScoreText(), ev.EvaluationDate, ev.Notes)
	}
	return tw.Flush()
}

func (cli *commandLine) years() error {
	years, err := cli.svc.Years()
	if err != nil {
		return err
	}
	fmt.Fprintln(cli.out, strings.Join(years, "\n"))
	return nil
}

func (cli *commandLine) stats() error {
	stats, err := cli.svc.Stats()
	if err != nil {
		return err
	}
	fmt.Fprintf(cli.out, "students: %d\nevaluations: %d\naverage: %.1f\n",
		stats.Students, stats.Evaluations, stats.AverageScore)
	return nil
}

func (cli *commandLine) export(args []string) error {
	fs := cli.newFlagSet("export")
	out := fs.String("out", "", "Output file")
	format := fs.String("format", "", "csv or xlsx (defaults to the file extension)")
	if err := fs.Parse(args); err != nil {
		return errHelp
	}
	if *out == "" {
		fs.Usage()
		return errHelp
	}
	if *format == "" {
		*format = "csv"
		if strings.HasSuffix(strings.ToLower(*out), ".xlsx") {
			*format = "xlsx"
		}
	}

	var (
		n   int
		err error
	)
	switch *format {
	case "csv":
		n, err = cli.svc.ExportCSV(*out)
	case "xlsx":
		n, err = cli.svc.ExportXLSX(*out)
	default:
		fs.Usage()
		return errHelp
	}
	if err != nil {
		return err
	}
	fmt.Fprintf(cli.out, "exported %d rows to %s\n", n, *out)
	return nil
}

func (cli *commandLine) importCSV(args []string) error {
	fs := cli.newFlagSet("import")
	in := fs.String("in", "", "CSV file to import; replaces all data")
	if err := fs.Parse(args); err != nil {
		return errHelp
	}
	if *in == "" {
		fs.Usage()
		return errHelp
	}

	report, err := cli.svc.ImportCSV(*in)
	if err != nil {
		return err
	}
	fmt.Fprintf(cli.out, "imported %d students, %d evaluations, skipped %d\n",
		report.Students, report.Evaluations, report.Skipped)
	return nil
}

func (cli *commandLine) backup() error {
	path, err := cli.svc.Backup()
	if err != nil {
		return err
	}
	fmt.Fprintf(cli.out, "backup written to %s\n", path)
	return nil
}

func (cli *commandLine) backups() error {
	entries, err := cli.svc.Backups()
	if err != nil {
		return err
	}
	tw := tabwriter.NewWriter(cli.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "TAKEN\tSIZE\tPATH")
	for _, e := range entries {
		fmt.Fprintf(tw, "%s\t%d\t%s\n", e.CreatedAt.Format(models.TimestampLayout), e.Size, e.Path)
	}
	return tw.Flush()
}

func (cli *commandLine) restore(args []string) error {
	fs := cli.newFlagSet("restore")
	from := fs.String("from", "", "Backup file (defaults to the newest backup)")
	if err := fs.Parse(args); err != nil {
		return errHelp
	}

	src, err := cli.svc.Restore(*from)
	if err != nil {
		return err
	}
	fmt.Fprintf(cli.out, "restored from %s\n", src)
	return nil
}

func (cli *commandLine) config(args []string) error {
	if len(args) == 0 {
		printUsage(cli.out)
		return errHelp
	}

	cfg := cli.svc.Config
	switch args[0] {
	case "show":
		for _, key := range config.Keys() {
			v, err := cfg.Get(key)
			if err != nil {
				return err
			}
			fmt.Fprintf(cli.out, "%s = %s\n", key, v)
		}
		return nil
	case "set":
		if len(args) != 3 {
			printUsage(cli.out)
			return errHelp
		}
		if err := cfg.Set(args[1], args[2]); err != nil {
			return err
		}
		fmt.Fprintf(cli.out, "%s = %s\n", args[1], args[2])
		return nil
	default:
		printUsage(cli.out)
		return errHelp
	}
}
