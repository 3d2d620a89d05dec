package rbum

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/grayforge/keyward/pkg/iamerr"
)

const certConfColumns = `id, own_paths, owner, create_time, update_time, scope_level, kind, supplier, ak_rule, sk_rule, sk_need, sk_dynamic, sk_encrypted, repeatable, expire_sec, sk_lock_cycle_sec, sk_lock_err_times, sk_lock_duration_sec, coexist_num, rel_rbum_domain_id, rel_rbum_item_id`

// AddCertConfReq is the input to AddCertConf.
type AddCertConfReq struct {
	Kind              string
	Supplier          string
	AkRule            string
	SkRule            string
	SkNeed            bool
	SkDynamic         bool
	SkEncrypted       bool
	Repeatable        bool
	ExpireSec         int64
	SkLockCycleSec    int64
	SkLockErrTimes    int
	SkLockDurationSec int64
	CoexistNum        int
	RelRbumDomainID   string
	RelRbumItemID     *string
	OwnPaths          string
	Owner             string
	ScopeLevel        ScopeLevel
}

// AddCertConf inserts a new credential validation policy. The
// (kind, supplier, rel_rbum_domain_id, rel_rbum_item_id) tuple is unique;
// a duplicate add fails with Conflict.
func (s *Store) AddCertConf(ctx context.Context, req AddCertConfReq) (*CertConf, error) {
	exists, err := s.certConfExists(ctx, req.Kind, req.Supplier, req.RelRbumDomainID, req.RelRbumItemID)
	if err != nil {
		return nil, iamerr.Wrap(iamerr.KindInternal, "rbum", "add-cert-conf", "checking cert-conf uniqueness", err)
	}
	if exists {
		return nil, iamerr.Conflict("rbum", "add-cert-conf", "a cert-conf already exists for this kind/supplier binding")
	}

	id := uuid.New().String()
	now := time.Now().UTC()
	row := s.db.QueryRow(ctx, `
		INSERT INTO rbum_cert_conf (id, own_paths, owner, create_time, update_time, scope_level, kind, supplier, ak_rule, sk_rule, sk_need, sk_dynamic, sk_encrypted, repeatable, expire_sec, sk_lock_cycle_sec, sk_lock_err_times, sk_lock_duration_sec, coexist_num, rel_rbum_domain_id, rel_rbum_item_id)
		VALUES ($1, $2, $3, $4, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20)
		RETURNING `+certConfColumns,
		id, req.OwnPaths, req.Owner, now, req.ScopeLevel, req.Kind, req.Supplier, req.AkRule, req.SkRule,
		req.SkNeed, req.SkDynamic, req.SkEncrypted, req.Repeatable, req.ExpireSec, req.SkLockCycleSec,
		req.SkLockErrTimes, req.SkLockDurationSec, req.CoexistNum, req.RelRbumDomainID, req.RelRbumItemID,
	)
	cc, err := scanCertConf(row)
	if err != nil {
		return nil, iamerr.Wrap(iamerr.KindInternal, "rbum", "add-cert-conf", "inserting cert-conf", err)
	}
	return &cc, nil
}

// GetCertConf fetches a cert-conf by id.
func (s *Store) GetCertConf(ctx context.Context, id string) (*CertConf, error) {
	row := s.db.QueryRow(ctx, `SELECT `+certConfColumns+` FROM rbum_cert_conf WHERE id = $1`, id)
	cc, err := scanCertConf(row)
	if err != nil {
		return nil, iamerr.NotFound("rbum", "get-cert-conf", "cert-conf not found")
	}
	return &cc, nil
}

// FindCertConfByKind fetches the cert-conf governing credentials of kind
// bound to relRbumItemID (nil for a tenant/platform-wide conf) within ownPaths.
func (s *Store) FindCertConfByKind(ctx context.Context, kind, ownPaths string, relRbumItemID *string) (*CertConf, error) {
	var row interface {
		Scan(dest ...any) error
	}
	if relRbumItemID == nil {
		row = s.db.QueryRow(ctx, `SELECT `+certConfColumns+` FROM rbum_cert_conf WHERE kind = $1 AND own_paths = $2 AND rel_rbum_item_id IS NULL`, kind, ownPaths)
	} else {
		row = s.db.QueryRow(ctx, `SELECT `+certConfColumns+` FROM rbum_cert_conf WHERE kind = $1 AND own_paths = $2 AND rel_rbum_item_id = $3`, kind, ownPaths, *relRbumItemID)
	}
	cc, err := scanCertConf(row)
	if err != nil {
		return nil, iamerr.NotFound("rbum", "find-cert-conf", "cert-conf not found for kind "+kind)
	}
	return &cc, nil
}

// ModifyCertConfReq carries the mutable cert-conf fields a tenant admin
// may edit after creation; nil fields are left unchanged.
type ModifyCertConfReq struct {
	AkRule            *string
	SkRule            *string
	SkNeed            *bool
	SkEncrypted       *bool
	Repeatable        *bool
	ExpireSec         *int64
	SkLockCycleSec    *int64
	SkLockErrTimes    *int
	SkLockDurationSec *int64
	CoexistNum        *int
}

// ModifyCertConf applies req to the cert-conf at id.
func (s *Store) ModifyCertConf(ctx context.Context, id string, req ModifyCertConfReq) (*CertConf, error) {
	cc, err := s.GetCertConf(ctx, id)
	if err != nil {
		return nil, err
	}
	if req.AkRule != nil {
		cc.AkRule = *req.AkRule
	}
	if req.SkRule != nil {
		cc.SkRule = *req.SkRule
	}
	if req.SkNeed != nil {
		cc.SkNeed = *req.SkNeed
	}
	if req.SkEncrypted != nil {
		cc.SkEncrypted = *req.SkEncrypted
	}
	if req.Repeatable != nil {
		cc.Repeatable = *req.Repeatable
	}
	if req.ExpireSec != nil {
		cc.ExpireSec = *req.ExpireSec
	}
	if req.SkLockCycleSec != nil {
		cc.SkLockCycleSec = *req.SkLockCycleSec
	}
	if req.SkLockErrTimes != nil {
		cc.SkLockErrTimes = *req.SkLockErrTimes
	}
	if req.SkLockDurationSec != nil {
		cc.SkLockDurationSec = *req.SkLockDurationSec
	}
	if req.CoexistNum != nil {
		cc.CoexistNum = *req.CoexistNum
	}

	row := s.db.QueryRow(ctx, `
		UPDATE rbum_cert_conf SET ak_rule = $2, sk_rule = $3, sk_need = $4, sk_encrypted = $5,
			repeatable = $6, expire_sec = $7, sk_lock_cycle_sec = $8, sk_lock_err_times = $9,
			sk_lock_duration_sec = $10, coexist_num = $11, update_time = $12
		WHERE id = $1
		RETURNING `+certConfColumns,
		id, cc.AkRule, cc.SkRule, cc.SkNeed, cc.SkEncrypted, cc.Repeatable, cc.ExpireSec,
		cc.SkLockCycleSec, cc.SkLockErrTimes, cc.SkLockDurationSec, cc.CoexistNum, time.Now().UTC(),
	)
	updated, err := scanCertConf(row)
	if err != nil {
		return nil, iamerr.Wrap(iamerr.KindInternal, "rbum", "modify-cert-conf", "updating cert-conf", err)
	}
	return &updated, nil
}

// DeleteCertConf removes a cert-conf, refusing while any cert instance
// still references it.
func (s *Store) DeleteCertConf(ctx context.Context, id string) error {
	var inUse bool
	if err := s.db.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM rbum_cert WHERE rel_rbum_cert_conf_id = $1)`, id).Scan(&inUse); err != nil {
		return iamerr.Wrap(iamerr.KindInternal, "rbum", "delete-cert-conf", "checking instances", err)
	}
	if inUse {
		return iamerr.Conflict("rbum", "delete-cert-conf", "cert instances still reference this cert-conf")
	}
	if _, err := s.db.Exec(ctx, `DELETE FROM rbum_cert_conf WHERE id = $1`, id); err != nil {
		return iamerr.Wrap(iamerr.KindInternal, "rbum", "delete-cert-conf", "deleting cert-conf", err)
	}
	return nil
}

func (s *Store) certConfExists(ctx context.Context, kind, supplier, domainID string, itemID *string) (bool, error) {
	var exists bool
	var err error
	if itemID == nil {
		err = s.db.QueryRow(ctx, `
			SELECT EXISTS(SELECT 1 FROM rbum_cert_conf WHERE kind = $1 AND supplier = $2 AND rel_rbum_domain_id = $3 AND rel_rbum_item_id IS NULL)`,
			kind, supplier, domainID).Scan(&exists)
	} else {
		err = s.db.QueryRow(ctx, `
			SELECT EXISTS(SELECT 1 FROM rbum_cert_conf WHERE kind = $1 AND supplier = $2 AND rel_rbum_domain_id = $3 AND rel_rbum_item_id = $4)`,
			kind, supplier, domainID, *itemID).Scan(&exists)
	}
	return exists, err
}

type scannable interface {
	Scan(dest ...any) error
}

func scanCertConf(row scannable) (CertConf, error) {
	var cc CertConf
	err := row.Scan(
		&cc.ID, &cc.OwnPaths, &cc.Owner, &cc.CreateTime, &cc.UpdateTime, &cc.ScopeLevel,
		&cc.Kind, &cc.Supplier, &cc.AkRule, &cc.SkRule, &cc.SkNeed, &cc.SkDynamic, &cc.SkEncrypted,
		&cc.Repeatable, &cc.ExpireSec, &cc.SkLockCycleSec, &cc.SkLockErrTimes, &cc.SkLockDurationSec,
		&cc.CoexistNum, &cc.RelRbumDomainID, &cc.RelRbumItemID,
	)
	return cc, err
}
