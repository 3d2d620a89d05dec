package rbum

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/grayforge/keyward/pkg/iamerr"
)

const certColumns = `id, own_paths, owner, create_time, update_time, scope_level, ak, sk, kind, supplier, start_time, end_time, status, rel_rbum_cert_conf_id, rel_rbum_kind, rel_rbum_id`

// AddCertReq is the input to AddCert.
type AddCertReq struct {
	Ak                string
	Sk                string
	Kind              string
	Supplier          string
	StartTime         time.Time
	EndTime           time.Time
	Status            CertStatus
	RelRbumCertConfID *string
	RelRbumKind       RelRbumKind
	RelRbumID         string
	OwnPaths          string
	Owner             string
	ScopeLevel        ScopeLevel
}

// AddCert inserts a new credential instance. Unless the governing
// cert-conf marks the kind Repeatable, (rel_rbum_cert_conf_id, ak) must
// be unique among Enabled certs — Disabled and Pending rows do not block
// re-adding an ak, and certs with no governing conf are unconstrained.
func (s *Store) AddCert(ctx context.Context, req AddCertReq, repeatable bool) (*Cert, error) {
	if !repeatable && req.RelRbumCertConfID != nil {
		exists, err := s.certAkExists(ctx, *req.RelRbumCertConfID, req.Ak)
		if err != nil {
			return nil, iamerr.Wrap(iamerr.KindInternal, "rbum", "add-cert", "checking ak uniqueness", err)
		}
		if exists {
			return nil, iamerr.Conflict("rbum", "add-cert", fmt.Sprintf("ak %q is already enabled under this cert-conf", req.Ak))
		}
	}

	id := uuid.New().String()
	now := time.Now().UTC()
	row := s.db.QueryRow(ctx, `
		INSERT INTO rbum_cert (id, own_paths, owner, create_time, update_time, scope_level, ak, sk, kind, supplier, start_time, end_time, status, rel_rbum_cert_conf_id, rel_rbum_kind, rel_rbum_id)
		VALUES ($1, $2, $3, $4, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		RETURNING `+certColumns,
		id, req.OwnPaths, req.Owner, now, req.ScopeLevel, req.Ak, req.Sk, req.Kind, req.Supplier,
		req.StartTime, req.EndTime, req.Status, req.RelRbumCertConfID, req.RelRbumKind, req.RelRbumID,
	)
	cert, err := scanCert(row)
	if err != nil {
		return nil, iamerr.Wrap(iamerr.KindInternal, "rbum", "add-cert", "inserting cert", err)
	}
	return &cert, nil
}

// GetCertByAk fetches the cert bound to ak for the given kind.
func (s *Store) GetCertByAk(ctx context.Context, kind, ak string) (*Cert, error) {
	row := s.db.QueryRow(ctx, `SELECT `+certColumns+` FROM rbum_cert WHERE kind = $1 AND ak = $2`, kind, ak)
	cert, err := scanCert(row)
	if err != nil {
		return nil, iamerr.NotFound("rbum", "get-cert", "cert not found")
	}
	return &cert, nil
}

// FindCertsByAnchor lists every cert bound to (relRbumKind, relRbumID) —
// used by cascading delete and by "list an account's credentials".
func (s *Store) FindCertsByAnchor(ctx context.Context, relRbumKind RelRbumKind, relRbumID string) ([]Cert, error) {
	rows, err := s.db.Query(ctx, `SELECT `+certColumns+` FROM rbum_cert WHERE rel_rbum_kind = $1 AND rel_rbum_id = $2 ORDER BY create_time`, relRbumKind, relRbumID)
	if err != nil {
		return nil, iamerr.Wrap(iamerr.KindInternal, "rbum", "find-certs", "listing certs", err)
	}
	defer rows.Close()

	var out []Cert
	for rows.Next() {
		cert, err := scanCertRows(rows)
		if err != nil {
			return nil, iamerr.Wrap(iamerr.KindInternal, "rbum", "find-certs", "scanning cert", err)
		}
		out = append(out, cert)
	}
	return out, rows.Err()
}

// SetCertStatus transitions a cert between Pending/Enabled/Disabled.
func (s *Store) SetCertStatus(ctx context.Context, id string, status CertStatus) error {
	tag, err := s.db.Exec(ctx, `UPDATE rbum_cert SET status = $2, update_time = $3 WHERE id = $1`, id, status, time.Now().UTC())
	if err != nil {
		return iamerr.Wrap(iamerr.KindInternal, "rbum", "set-cert-status", "updating status", err)
	}
	if tag.RowsAffected() == 0 {
		return iamerr.NotFound("rbum", "set-cert-status", "cert not found")
	}
	return nil
}

// DeleteCert removes a single cert instance by id. Idempotent: deleting
// an already-absent id is not an error.
func (s *Store) DeleteCert(ctx context.Context, id string) error {
	if _, err := s.db.Exec(ctx, `DELETE FROM rbum_cert WHERE id = $1`, id); err != nil {
		return iamerr.Wrap(iamerr.KindInternal, "rbum", "delete-cert", "deleting cert", err)
	}
	return nil
}

func (s *Store) certAkExists(ctx context.Context, certConfID, ak string) (bool, error) {
	var exists bool
	err := s.db.QueryRow(ctx, `
		SELECT EXISTS(SELECT 1 FROM rbum_cert WHERE rel_rbum_cert_conf_id = $1 AND ak = $2 AND status = $3)`,
		certConfID, ak, CertEnabled).Scan(&exists)
	return exists, err
}

func scanCert(row scannable) (Cert, error) {
	var c Cert
	err := row.Scan(
		&c.ID, &c.OwnPaths, &c.Owner, &c.CreateTime, &c.UpdateTime, &c.ScopeLevel,
		&c.Ak, &c.Sk, &c.Kind, &c.Supplier, &c.StartTime, &c.EndTime, &c.Status,
		&c.RelRbumCertConfID, &c.RelRbumKind, &c.RelRbumID,
	)
	return c, err
}

func scanCertRows(rows scannable) (Cert, error) {
	return scanCert(rows)
}
