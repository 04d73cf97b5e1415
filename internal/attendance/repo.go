package attendance

import (
	"context"
	"errors"
	"sync"
	"time"

	"schoolattend/internal/store"
	"schoolattend/internal/validation"
)

// Repository persists accounts, attendance records and approval requests as
// three whole-array collections in a key-value store.
type Repository struct {
	mu        sync.Mutex
	accounts  store.Collection[Account]
	records   store.Collection[AttendanceRecord]
	approvals store.Collection[ApprovalRequest]
	secrets   Secrets
	now       func() time.Time
}

// NewRepository creates a repo. A nil secrets keeps credentials as given.
func NewRepository(kv store.KV, secrets Secrets) *Repository {
	if secrets == nil {
		secrets = PlainSecrets{}
	}
	return &Repository{
		accounts:  store.NewCollection[Account](kv, store.KeyUsers),
		records:   store.NewCollection[AttendanceRecord](kv, store.KeyAttendanceRecords),
		approvals: store.NewCollection[ApprovalRequest](kv, store.KeyPendingApprovals),
		secrets:   secrets,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// SeedDepartmentHeadIfAbsent inserts the default hod account unless an
// account with role hod already exists. It reports whether it inserted.
func (r *Repository) SeedDepartmentHeadIfAbsent(ctx context.Context) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	accounts, err := r.accounts.Read(ctx)
	if err != nil {
		return false, err
	}
	for _, a := range accounts {
		if a.Role() == RoleHOD {
			return false, nil
		}
	}
	secret, err := r.secrets.Hash(DefaultHODSecret)
	if err != nil {
		return false, err
	}
	accounts = append(accounts, Account{
		ID:        DefaultHODID,
		Email:     DefaultHODEmail,
		Secret:    secret,
		Name:      DefaultHODName,
		Approved:  true,
		Profile:   DepartmentHeadProfile{},
		CreatedAt: r.now(),
	})
	return true, r.accounts.Write(ctx, accounts)
}

// HashSecret converts a presented credential to its stored form.
func (r *Repository) HashSecret(secret string) (string, error) {
	return r.secrets.Hash(secret)
}

// FindAccountByCredentials matches email exactly and the secret through the
// configured Secrets. Approval is not considered.
func (r *Repository) FindAccountByCredentials(ctx context.Context, email, secret string) (Account, bool, error) {
	accounts, err := r.accounts.Read(ctx)
	if err != nil {
		return Account{}, false, err
	}
	for _, a := range accounts {
		if a.Email == email && r.secrets.Verify(a.Secret, secret) {
			return a, true, nil
		}
	}
	return Account{}, false, nil
}

// FindAccountByID returns the account with id.
func (r *Repository) FindAccountByID(ctx context.Context, id string) (Account, bool, error) {
	accounts, err := r.accounts.Read(ctx)
	if err != nil {
		return Account{}, false, err
	}
	for _, a := range accounts {
		if a.ID == id {
			return a, true, nil
		}
	}
	return Account{}, false, nil
}

// AccountExistsByEmail reports whether any account uses email.
func (r *Repository) AccountExistsByEmail(ctx context.Context, email string) (bool, error) {
	accounts, err := r.accounts.Read(ctx)
	if err != nil {
		return false, err
	}
	for _, a := range accounts {
		if a.Email == email {
			return true, nil
		}
	}
	return false, nil
}

// InsertAccount appends a. Email uniqueness is the caller's job.
func (r *Repository) InsertAccount(ctx context.Context, a Account) error {
	if a.Profile == nil {
		return errors.New("account profile required")
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	accounts, err := r.accounts.Read(ctx)
	if err != nil {
		return err
	}
	return r.accounts.Write(ctx, append(accounts, a))
}

// SetAccountApproved sets the approval flag. Unknown ids are ignored.
func (r *Repository) SetAccountApproved(ctx context.Context, accountID string, approved bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	accounts, err := r.accounts.Read(ctx)
	if err != nil {
		return err
	}
	for i := range accounts {
		if accounts[i].ID == accountID {
			accounts[i].Approved = approved
			return r.accounts.Write(ctx, accounts)
		}
	}
	return nil
}

// ListAttendanceRecords returns every record in insertion order.
func (r *Repository) ListAttendanceRecords(ctx context.Context) ([]AttendanceRecord, error) {
	return r.records.Read(ctx)
}

// InsertAttendanceRecord appends one record.
func (r *Repository) InsertAttendanceRecord(ctx context.Context, rec AttendanceRecord) error {
	return r.InsertAttendanceRecords(ctx, []AttendanceRecord{rec})
}

// InsertAttendanceRecords appends recs in a single write.
func (r *Repository) InsertAttendanceRecords(ctx context.Context, recs []AttendanceRecord) error {
	if len(recs) == 0 {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	records, err := r.records.Read(ctx)
	if err != nil {
		return err
	}
	return r.records.Write(ctx, append(records, recs...))
}

// UpdateAttendanceRecord merges patch into the record with id and reports
// whether one matched. A missing id writes nothing.
func (r *Repository) UpdateAttendanceRecord(ctx context.Context, id string, patch RecordPatch) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	records, err := r.records.Read(ctx)
	if err != nil {
		return false, err
	}
	for i := range records {
		if records[i].ID == id {
			patch.apply(&records[i])
			return true, r.records.Write(ctx, records)
		}
	}
	return false, nil
}

// DeleteAttendanceRecord removes the record with id and reports whether one
// matched.
func (r *Repository) DeleteAttendanceRecord(ctx context.Context, id string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	records, err := r.records.Read(ctx)
	if err != nil {
		return false, err
	}
	kept := records[:0]
	for _, rec := range records {
		if rec.ID != id {
			kept = append(kept, rec)
		}
	}
	if len(kept) == len(records) {
		return false, nil
	}
	return true, r.records.Write(ctx, kept)
}

// ListApprovalRequests returns every request in insertion order.
func (r *Repository) ListApprovalRequests(ctx context.Context) ([]ApprovalRequest, error) {
	return r.approvals.Read(ctx)
}

// FindApprovalRequest returns the request with id.
func (r *Repository) FindApprovalRequest(ctx context.Context, id string) (ApprovalRequest, bool, error) {
	reqs, err := r.approvals.Read(ctx)
	if err != nil {
		return ApprovalRequest{}, false, err
	}
	for _, req := range reqs {
		if req.ID == id {
			return req, true, nil
		}
	}
	return ApprovalRequest{}, false, nil
}

// InsertApprovalRequest appends req.
func (r *Repository) InsertApprovalRequest(ctx context.Context, req ApprovalRequest) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	reqs, err := r.approvals.Read(ctx)
	if err != nil {
		return err
	}
	return r.approvals.Write(ctx, append(reqs, req))
}

// SetApprovalStatus records a decision on the request with id. Unknown ids
// are ignored and accounts are not touched.
func (r *Repository) SetApprovalStatus(ctx context.Context, requestID string, status ApprovalStatus) error {
	if status != Approved && status != Rejected {
		return validation.Invalid("status", "status must be approved or rejected")
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	reqs, err := r.approvals.Read(ctx)
	if err != nil {
		return err
	}
	for i := range reqs {
		if reqs[i].ID == requestID {
			reqs[i].Status = status
			return r.approvals.Write(ctx, reqs)
		}
	}
	return nil
}
