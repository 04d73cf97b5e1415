package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"schoolattend/internal/attendance"
	"schoolattend/internal/auth"
	"schoolattend/internal/store"
	"schoolattend/internal/validation"
)

func setup(t *testing.T) (*commandLine, *bytes.Buffer, *attendance.Repository) {
	t.Helper()
	kv := store.NewMemory()
	t.Cleanup(func() { _ = kv.Close() })

	validate := validation.New()
	repo := attendance.NewRepository(kv, auth.NewHasher(bcrypt.MinCost))
	authSvc := auth.NewService(repo, validate, zap.NewNop())
	require.NoError(t, authSvc.Bootstrap(context.Background()))

	var out bytes.Buffer
	cli := newCommandLine(authSvc, attendance.NewService(repo, validate, zap.NewNop()),
		auth.NewSessionManager(kv, auth.SessionKey("")), &out)
	cli.now = func() time.Time { return time.Date(2024, 3, 4, 9, 0, 0, 0, time.UTC) }
	return cli, &out, repo
}

// prompts makes readPasswordFunc answer with pwds in order.
func prompts(t *testing.T, pwds ...string) {
	t.Helper()
	orig := readPasswordFunc
	t.Cleanup(func() { readPasswordFunc = orig })
	readPasswordFunc = func(int) ([]byte, error) {
		if len(pwds) == 0 {
			return nil, nil
		}
		p := pwds[0]
		pwds = pwds[1:]
		return []byte(p), nil
	}
}

type cliTest struct {
	name    string
	args    []string // without program name
	wantErr error
}

func Test_commandLine_usage(t *testing.T) {
	cli, _, _ := setup(t)

	tests := []cliTest{
		{name: "no command", wantErr: errHelp},
		{name: "unknown command", args: []string{"lol"}, wantErr: errHelp},
		{name: "login without email", args: []string{"login"}, wantErr: errHelp},
		{name: "approve without id", args: []string{"approve"}, wantErr: errHelp},
		{name: "set-status missing status", args: []string{"set-status", "r1"}, wantErr: errHelp},
		{name: "help flag", args: []string{"records", "-h"}, wantErr: errHelp},
		{name: "whoami signed out", args: []string{"whoami"}, wantErr: errNotSignedIn},
		{name: "records signed out", args: []string{"records"}, wantErr: errNotSignedIn},
		{name: "mark signed out", args: []string{"mark", "-subject", "Math", "-student", "S1,Sam"}, wantErr: errNotSignedIn},
		{name: "logout signed out"},
	}
	for _, tt := range tests {
		args := append([]string{"attendance"}, tt.args...)

		t.Run(tt.name, func(t *testing.T) {
			err := cli.run(args)
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func Test_commandLine_teacherApproval(t *testing.T) {
	cli, out, repo := setup(t)
	ctx := context.Background()

	run := func(args ...string) error {
		out.Reset()
		return cli.run(append([]string{"attendance"}, args...))
	}

	require.NoError(t, run("register", "-role", "teacher", "-email", "ann@school.edu", "-name", "Ann",
		"-department", "Science", "-teacher-id", "T1", "-password", "secret1"))
	assert.Contains(t, out.String(), "waiting for HOD approval")

	assert.ErrorIs(t, run("login", "-email", "ann@school.edu", "-password", "secret1"), auth.ErrPendingApproval)
	assert.ErrorIs(t, run("approvals"), errNotSignedIn)

	prompts(t, attendance.DefaultHODSecret)
	require.NoError(t, run("login", "-email", attendance.DefaultHODEmail))
	assert.Contains(t, out.String(), "Signed in as Head of Department (hod)")

	require.NoError(t, run("approvals"))
	assert.Contains(t, out.String(), "1 pending, 0 approved, 0 rejected")
	assert.Contains(t, out.String(), "ann@school.edu")

	reqs, err := repo.ListApprovalRequests(ctx)
	require.NoError(t, err)
	require.Len(t, reqs, 1)

	require.NoError(t, run("approve", reqs[0].ID))
	assert.Equal(t, "Request for Ann approved.\n", out.String())
	require.NoError(t, run("reject", reqs[0].ID))
	assert.Equal(t, "Request for Ann was already approved.\n", out.String())
	assert.EqualError(t, run("approve", "missing"), `no approval request "missing"`)

	require.NoError(t, run("approvals", "-status", "pending"))
	assert.Contains(t, out.String(), "No requests.")
	assert.ErrorIs(t, run("approvals", "-status", "bogus"), validation.ErrInvalid)

	require.NoError(t, run("logout"))
	require.NoError(t, run("login", "-email", "ann@school.edu", "-password", "secret1"))
	require.NoError(t, run("whoami"))
	assert.Contains(t, out.String(), "Teacher ID:  T1")
	assert.ErrorIs(t, run("approvals"), attendance.ErrForbidden)
}

func Test_commandLine_records(t *testing.T) {
	cli, out, repo := setup(t)
	ctx := context.Background()

	run := func(args ...string) error {
		out.Reset()
		return cli.run(append([]string{"attendance"}, args...))
	}

	require.NoError(t, repo.InsertAccount(ctx, attendance.Account{
		ID: "t1", Email: "bo@school.edu", Secret: "secret1", Name: "Bo", Approved: true,
		Profile: attendance.TeacherProfile{Department: "Math", TeacherID: "T9"},
	}))
	require.NoError(t, run("login", "-email", "bo@school.edu", "-password", "secret1"))

	require.NoError(t, run("mark", "-subject", "Math",
		"-student", "S1,Sam", "-student", "S2,Kim Lee,absent"))
	assert.Contains(t, out.String(), "Marked 2 students for Math on 2024-03-04.")

	assert.ErrorIs(t, run("mark", "-subject", "Math", "-student", "S1,Sam", "-student", "S1,Sam"), validation.ErrInvalid)
	assert.ErrorIs(t, run("mark", "-subject", "Math"), validation.ErrInvalid)

	require.NoError(t, run("records", "-status", "absent"))
	assert.Contains(t, out.String(), "Kim Lee")
	assert.NotContains(t, out.String(), "Sam")
	assert.Contains(t, out.String(), "1 records, 0.0% present")

	recs, err := repo.ListAttendanceRecords(ctx)
	require.NoError(t, err)
	require.Len(t, recs, 2)
	kim := recs[1]
	require.Equal(t, "S2", kim.StudentID)

	require.NoError(t, run("set-status", kim.ID, "late"))
	assert.Equal(t, "Record "+kim.ID+" is now late.\n", out.String())
	assert.ErrorIs(t, run("set-status", kim.ID, "gone"), validation.ErrInvalid)
	assert.EqualError(t, run("set-status", "nope", "late"), `no attendance record "nope"`)

	require.NoError(t, run("report"))
	assert.Contains(t, out.String(), "Attendance rate:  50.0%")
	assert.Contains(t, out.String(), "Standing:         Needs Improvement")
	assert.Contains(t, out.String(), "2024-03-04  1        0       1")

	require.NoError(t, run("report", "-format", "csv"))
	assert.Contains(t, out.String(), `"Date","Student Name","Student ID","Subject","Status","Marked By","Notes"`)
	assert.Contains(t, out.String(), `"2024-03-04","Kim Lee","S2","Math","late","Bo",""`)

	path := filepath.Join(t.TempDir(), "report.xlsx")
	require.NoError(t, run("report", "-format", "xlsx", "-o", path))
	assert.Equal(t, "Wrote 2 records to "+path+".\n", out.String())
	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Positive(t, info.Size())

	assert.EqualError(t, run("report", "-format", "pdf"), "format must be one of summary, csv, html, xlsx")
	assert.EqualError(t, run("report", "-days", "0"), "days must be between 1 and 366")
	assert.EqualError(t, run("report", "-days", "100000"), "days must be between 1 and 366")
	assert.Error(t, run("report", "-format", "csv", "-o", filepath.Join(t.TempDir(), "missing", "r.csv")))
	assert.EqualError(t, run("report", "-format", "csv", "-date", "1999-01-01"), "no attendance records found for the selected range")

	require.NoError(t, run("delete", kim.ID))
	assert.EqualError(t, run("delete", kim.ID), `no attendance record "`+kim.ID+`"`)

	// a registering student takes over the local session
	prompts(t, "secret2", "secret2")
	require.NoError(t, run("register", "-email", "sam@school.edu", "-name", "Sam", "-student-id", "S1"))
	assert.Equal(t, "Welcome, Sam. You are signed in as student.\n", out.String())

	require.NoError(t, run("records"))
	assert.Contains(t, out.String(), "Sam")
	assert.Contains(t, out.String(), "1 records, 100.0% present")
	assert.ErrorIs(t, run("mark", "-subject", "Math", "-student", "S1,Sam"), attendance.ErrForbidden)

	require.NoError(t, run("report", "-format", "html"))
	assert.Contains(t, out.String(), "<h1>My Attendance Report</h1>")
}

func Test_commandLine_registerPasswordMismatch(t *testing.T) {
	cli, _, _ := setup(t)
	prompts(t, "secret1", "secret9")

	err := cli.run([]string{"attendance", "register", "-email", "x@school.edu", "-name", "X", "-student-id", "S7"})
	assert.ErrorIs(t, err, validation.ErrInvalid)
	assert.ErrorContains(t, err, "confirmPassword does not match")
}

func Test_rosterFlag(t *testing.T) {
	var r rosterFlag
	require.NoError(t, r.Set("S1,Sam"))
	require.NoError(t, r.Set(" S2 , Kim, Jr. ,late"))
	require.NoError(t, r.Set("S3,Lee,Ann"))
	assert.Error(t, r.Set("S4"))

	assert.Equal(t, rosterFlag{
		{StudentID: "S1", StudentName: "Sam"},
		{StudentID: "S2", StudentName: "Kim, Jr.", Status: attendance.Late},
		{StudentID: "S3", StudentName: "Lee,Ann"},
	}, r)
}

func Test_userMessage(t *testing.T) {
	assert.Equal(t, "something went wrong reading or writing attendance data",
		userMessage(&store.Error{Op: "decode", Key: store.KeyAttendanceRecords}))
	assert.Equal(t, auth.ErrInvalidCredentials.Error(), userMessage(auth.ErrInvalidCredentials))
}
