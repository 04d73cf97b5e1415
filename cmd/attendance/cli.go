package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"golang.org/x/term"

	"schoolattend/internal/attendance"
	"schoolattend/internal/auth"
	"schoolattend/internal/report"
)

var (
	readPasswordFunc = term.ReadPassword // mockable

	errHelp        = errors.New("help provided")
	errNotSignedIn = errors.New(`not signed in, run "attendance login" first`)
)

// maxTrendDays bounds the daily trend of a summary report.
const maxTrendDays = 366

type commandLine struct {
	authSvc *auth.Service
	attSvc  *attendance.Service
	sm      *auth.SessionManager
	out     io.Writer
	stdin   int
	now     func() time.Time
}

func newCommandLine(authSvc *auth.Service, attSvc *attendance.Service, sm *auth.SessionManager, out io.Writer) *commandLine {
	return &commandLine{
		authSvc: authSvc,
		attSvc:  attSvc,
		sm:      sm,
		out:     out,
		stdin:   int(os.Stdin.Fd()),
		now:     time.Now,
	}
}

func (cli *commandLine) printUsage() {
	fmt.Fprintln(cli.out, `Usage:
  register -email EMAIL -name NAME -role teacher|student [-department D -teacher-id T | -student-id S]
  login -email EMAIL                 - sign in, the password is prompted
  logout                             - end the current session
  whoami                             - show the signed-in account
  approvals [-status STATUS]         - list teacher approval requests (hod)
  approve ID | reject ID             - decide an approval request (hod)
  mark -subject S -student "ID,Name[,status]"...  - mark a class session (teacher)
  records [-search Q -date D -status S -from D -to D]
  set-status ID STATUS               - change a record's status (teacher)
  delete ID                          - delete a record (teacher)
  report [-format summary|csv|html|xlsx] [-o FILE] [-from D -to D]`)
}

func (cli *commandLine) flagSet(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(cli.out)
	return fs
}

func parse(fs *flag.FlagSet, args []string) error {
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return errHelp
		}
		return err
	}
	return nil
}

func (cli *commandLine) run(args []string) error {
	if len(args) < 2 {
		cli.printUsage()
		return errHelp
	}
	ctx := context.Background()
	rest := args[2:]

	switch args[1] {
	case "register":
		return cli.register(ctx, rest)
	case "login":
		return cli.login(ctx, rest)
	case "logout":
		if err := cli.authSvc.Logout(ctx, cli.sm); err != nil {
			return err
		}
		fmt.Fprintln(cli.out, "Signed out.")
		return nil
	case "whoami":
		return cli.whoami(ctx)
	case "approvals":
		return cli.approvals(ctx, rest)
	case "approve":
		return cli.decide(ctx, rest, attendance.Approved)
	case "reject":
		return cli.decide(ctx, rest, attendance.Rejected)
	case "mark":
		return cli.mark(ctx, rest)
	case "records":
		return cli.records(ctx, rest)
	case "set-status":
		return cli.setStatus(ctx, rest)
	case "delete":
		return cli.delete(ctx, rest)
	case "report":
		return cli.report(ctx, rest)
	default:
		cli.printUsage()
		return errHelp
	}
}

// password returns given, or prompts for one when given is empty.
func (cli *commandLine) password(prompt, given string) (string, error) {
	if given != "" {
		return given, nil
	}
	fmt.Fprint(cli.out, prompt)
	pwd, err := readPasswordFunc(cli.stdin)
	fmt.Fprintln(cli.out)
	if err != nil {
		return "", err
	}
	return string(pwd), nil
}

func (cli *commandLine) session(ctx context.Context) (auth.Session, error) {
	sess, ok, err := cli.sm.Current(ctx)
	if err != nil {
		return auth.Session{}, err
	}
	if !ok {
		return auth.Session{}, errNotSignedIn
	}
	return sess, nil
}

func (cli *commandLine) register(ctx context.Context, args []string) error {
	fs := cli.flagSet("register")
	var in auth.RegistrationInput
	var role, pwd string
	fs.StringVar(&in.Email, "email", "", "Email address to sign in with.")
	fs.StringVar(&in.Name, "name", "", "Full name.")
	fs.StringVar(&role, "role", "student", "teacher or student.")
	fs.StringVar(&in.Department, "department", "", "Department (teachers).")
	fs.StringVar(&in.TeacherID, "teacher-id", "", "Staff identifier (teachers).")
	fs.StringVar(&in.StudentID, "student-id", "", "Student identifier (students).")
	fs.StringVar(&pwd, "password", "", "Password. Prompted when omitted.")
	if err := parse(fs, args); err != nil {
		return err
	}
	in.Role = attendance.Role(role)

	var err error
	if in.Password, err = cli.password("Choose a password: ", pwd); err != nil {
		return err
	}
	if pwd == "" {
		if in.ConfirmPassword, err = cli.password("Confirm password: ", ""); err != nil {
			return err
		}
	}

	outcome, err := cli.authSvc.Register(ctx, cli.sm, in)
	if err != nil {
		return err
	}
	if outcome.AwaitingApproval {
		fmt.Fprintln(cli.out, "Registration received. Your account is waiting for HOD approval.")
		return nil
	}
	fmt.Fprintf(cli.out, "Welcome, %s. You are signed in as %s.\n", outcome.Session.Name, outcome.Session.Role())
	return nil
}

func (cli *commandLine) login(ctx context.Context, args []string) error {
	fs := cli.flagSet("login")
	email := fs.String("email", "", "The account's email. The password will be prompted next.")
	given := fs.String("password", "", "Password. Prompted when omitted.")
	if err := parse(fs, args); err != nil {
		return err
	}
	if *email == "" {
		fs.Usage()
		return errHelp
	}
	pwd, err := cli.password("Password: ", *given)
	if err != nil {
		return err
	}
	sess, err := cli.authSvc.Login(ctx, cli.sm, *email, pwd)
	if err != nil {
		return err
	}
	fmt.Fprintf(cli.out, "Signed in as %s (%s).\n", sess.Name, sess.Role())
	return nil
}

func (cli *commandLine) whoami(ctx context.Context) error {
	sess, err := cli.session(ctx)
	if err != nil {
		return err
	}
	tw := tabwriter.NewWriter(cli.out, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "Name:\t%s\n", sess.Name)
	fmt.Fprintf(tw, "Email:\t%s\n", sess.Email)
	fmt.Fprintf(tw, "Role:\t%s\n", sess.Role())
	switch p := sess.Profile.(type) {
	case attendance.TeacherProfile:
		fmt.Fprintf(tw, "Department:\t%s\n", p.Department)
		fmt.Fprintf(tw, "Teacher ID:\t%s\n", p.TeacherID)
	case attendance.StudentProfile:
		fmt.Fprintf(tw, "Student ID:\t%s\n", p.StudentID)
	}
	return tw.Flush()
}

func (cli *commandLine) approvals(ctx context.Context, args []string) error {
	fs := cli.flagSet("approvals")
	status := fs.String("status", string(attendance.Pending), "pending, approved, rejected or all.")
	if err := parse(fs, args); err != nil {
		return err
	}
	sess, err := cli.session(ctx)
	if err != nil {
		return err
	}
	reqs, counts, err := cli.authSvc.Approvals(ctx, sess.Account, *status)
	if err != nil {
		return err
	}
	fmt.Fprintf(cli.out, "%d pending, %d approved, %d rejected\n", counts.Pending, counts.Approved, counts.Rejected)
	if len(reqs) == 0 {
		fmt.Fprintln(cli.out, "No requests.")
		return nil
	}
	tw := tabwriter.NewWriter(cli.out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tEMAIL\tDEPARTMENT\tTEACHER ID\tREQUESTED\tSTATUS")
	for _, r := range reqs {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			r.ID, r.Name, r.Email, r.Department, r.TeacherID, r.RequestedAt.Format(time.DateOnly), r.Status)
	}
	return tw.Flush()
}

func (cli *commandLine) decide(ctx context.Context, args []string, decision attendance.ApprovalStatus) error {
	if len(args) != 1 {
		cli.printUsage()
		return errHelp
	}
	id := args[0]
	sess, err := cli.session(ctx)
	if err != nil {
		return err
	}
	var decided bool
	if decision == attendance.Approved {
		decided, err = cli.authSvc.Approve(ctx, sess.Account, id)
	} else {
		decided, err = cli.authSvc.Reject(ctx, sess.Account, id)
	}
	if err != nil {
		return err
	}
	req, ok, err := cli.attSvc.Repo().FindApprovalRequest(ctx, id)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("no approval request %q", id)
	}
	if !decided {
		fmt.Fprintf(cli.out, "Request for %s was already %s.\n", req.Name, req.Status)
		return nil
	}
	fmt.Fprintf(cli.out, "Request for %s %s.\n", req.Name, decision)
	return nil
}

// rosterFlag collects repeated -student "ID,Name[,status]" values.
type rosterFlag []attendance.MarkEntry

func (r *rosterFlag) String() string {
	if r == nil {
		return ""
	}
	parts := make([]string, len(*r))
	for i, e := range *r {
		parts[i] = e.StudentID + "," + e.StudentName
	}
	return strings.Join(parts, " ")
}

func (r *rosterFlag) Set(v string) error {
	parts := strings.Split(v, ",")
	if len(parts) < 2 {
		return fmt.Errorf("want ID,Name[,status], got %q", v)
	}
	e := attendance.MarkEntry{StudentID: strings.TrimSpace(parts[0])}
	if last := attendance.Status(strings.TrimSpace(parts[len(parts)-1])); len(parts) > 2 && last.Valid() {
		e.Status = last
		parts = parts[:len(parts)-1]
	}
	e.StudentName = strings.TrimSpace(strings.Join(parts[1:], ","))
	*r = append(*r, e)
	return nil
}

func (cli *commandLine) mark(ctx context.Context, args []string) error {
	fs := cli.flagSet("mark")
	var roster rosterFlag
	var all string
	in := attendance.MarkSessionInput{}
	fs.StringVar(&in.Date, "date", cli.now().Format(time.DateOnly), "Session date, YYYY-MM-DD.")
	fs.StringVar(&in.Subject, "subject", "", "Subject taught.")
	fs.StringVar(&in.Notes, "notes", "", "Notes copied onto every record.")
	fs.StringVar(&all, "all", "", "Mark every student present, absent or late.")
	fs.Var(&roster, "student", `Student as "ID,Name[,status]". Repeat for each student.`)
	if err := parse(fs, args); err != nil {
		return err
	}
	in.All = attendance.Status(all)
	in.Entries = roster

	sess, err := cli.session(ctx)
	if err != nil {
		return err
	}
	recs, err := cli.attSvc.MarkSession(ctx, sess.Account, in)
	if err != nil {
		return err
	}
	fmt.Fprintf(cli.out, "Marked %d students for %s on %s.\n", len(recs), in.Subject, in.Date)
	return cli.printRecords(recs)
}

func (cli *commandLine) filterFlags(fs *flag.FlagSet) *attendance.RecordFilter {
	var f attendance.RecordFilter
	fs.StringVar(&f.Search, "search", "", "Match student name, student ID or subject.")
	fs.StringVar(&f.Date, "date", "", "Only this date.")
	fs.Func("status", "present, absent or late.", func(v string) error {
		f.Status = attendance.Status(v)
		return nil
	})
	fs.StringVar(&f.From, "from", "", "Earliest date.")
	fs.StringVar(&f.To, "to", "", "Latest date.")
	return &f
}

func (cli *commandLine) records(ctx context.Context, args []string) error {
	fs := cli.flagSet("records")
	f := cli.filterFlags(fs)
	if err := parse(fs, args); err != nil {
		return err
	}
	sess, err := cli.session(ctx)
	if err != nil {
		return err
	}
	recs, err := cli.attSvc.Records(ctx, sess.Account, *f)
	if err != nil {
		return err
	}
	if len(recs) == 0 {
		fmt.Fprintln(cli.out, "No attendance records.")
		return nil
	}
	if err := cli.printRecords(recs); err != nil {
		return err
	}
	st := report.Summarize(recs)
	fmt.Fprintf(cli.out, "%d records, %.1f%% present\n", st.Total, st.PresentRate)
	return nil
}

func (cli *commandLine) printRecords(recs []attendance.AttendanceRecord) error {
	tw := tabwriter.NewWriter(cli.out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tDATE\tSTUDENT\tSTUDENT ID\tSUBJECT\tSTATUS\tMARKED BY")
	for _, r := range recs {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			r.ID, r.Date, r.StudentName, r.StudentID, r.Subject, r.Status, r.MarkedBy)
	}
	return tw.Flush()
}

func (cli *commandLine) setStatus(ctx context.Context, args []string) error {
	if len(args) != 2 {
		cli.printUsage()
		return errHelp
	}
	sess, err := cli.session(ctx)
	if err != nil {
		return err
	}
	found, err := cli.attSvc.SetStatus(ctx, sess.Account, args[0], attendance.Status(args[1]))
	if err != nil {
		return err
	}
	if !found {
		return fmt.Errorf("no attendance record %q", args[0])
	}
	fmt.Fprintf(cli.out, "Record %s is now %s.\n", args[0], args[1])
	return nil
}

func (cli *commandLine) delete(ctx context.Context, args []string) error {
	if len(args) != 1 {
		cli.printUsage()
		return errHelp
	}
	sess, err := cli.session(ctx)
	if err != nil {
		return err
	}
	found, err := cli.attSvc.Delete(ctx, sess.Account, args[0])
	if err != nil {
		return err
	}
	if !found {
		return fmt.Errorf("no attendance record %q", args[0])
	}
	fmt.Fprintf(cli.out, "Record %s deleted.\n", args[0])
	return nil
}

func (cli *commandLine) report(ctx context.Context, args []string) error {
	fs := cli.flagSet("report")
	f := cli.filterFlags(fs)
	format := fs.String("format", "summary", "summary, csv, html or xlsx.")
	output := fs.String("o", "", "Write the export to this file instead of standard output.")
	days := fs.Int("days", 7, "Days of daily trend in the summary.")
	if err := parse(fs, args); err != nil {
		return err
	}
	switch *format {
	case "summary", "csv", "html", "xlsx":
	default:
		return fmt.Errorf("format must be one of summary, csv, html, xlsx")
	}
	if *days < 1 || *days > maxTrendDays {
		return fmt.Errorf("days must be between 1 and %d", maxTrendDays)
	}
	sess, err := cli.session(ctx)
	if err != nil {
		return err
	}
	recs, err := cli.attSvc.Records(ctx, sess.Account, *f)
	if err != nil {
		return err
	}
	if *format == "summary" {
		return cli.summary(recs, *days)
	}
	if len(recs) == 0 {
		return errors.New("no attendance records found for the selected range")
	}

	layout, meta := report.Staff, report.Meta{Generated: cli.now(), From: f.From, To: f.To}
	if sess.Role() == attendance.RoleStudent {
		layout = report.Student
		meta.Title = "My Attendance Report"
		meta.Student = sess.Name
	}

	if *output == "" {
		return writeExport(cli.out, *format, recs, layout, meta)
	}
	file, err := os.Create(*output)
	if err != nil {
		return err
	}
	err = writeExport(file, *format, recs, layout, meta)
	if cerr := file.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return err
	}
	fmt.Fprintf(cli.out, "Wrote %d records to %s.\n", len(recs), *output)
	return nil
}

func writeExport(w io.Writer, format string, recs []attendance.AttendanceRecord, layout report.Layout, meta report.Meta) error {
	switch format {
	case "csv":
		return report.WriteCSV(w, recs, layout)
	case "html":
		return report.WriteHTML(w, recs, layout, meta)
	default:
		return report.WriteXLSX(w, recs, layout)
	}
}

func (cli *commandLine) summary(recs []attendance.AttendanceRecord, days int) error {
	st := report.Summarize(recs)
	tw := tabwriter.NewWriter(cli.out, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "Total:\t%d\n", st.Total)
	fmt.Fprintf(tw, "Present:\t%d\n", st.Present)
	fmt.Fprintf(tw, "Absent:\t%d\n", st.Absent)
	fmt.Fprintf(tw, "Late:\t%d\n", st.Late)
	fmt.Fprintf(tw, "Attendance rate:\t%.1f%%\n", st.PresentRate)
	fmt.Fprintf(tw, "Standing:\t%s\n", report.Standing(st.PresentRate))
	if trend := report.Trend(recs, cli.now(), days); len(trend) > 0 {
		fmt.Fprintln(tw, "\nDATE\tPRESENT\tABSENT\tLATE")
		for _, d := range trend {
			fmt.Fprintf(tw, "%s\t%d\t%d\t%d\n", d.Date, d.Present, d.Absent, d.Late)
		}
	}
	return tw.Flush()
}
