// Package spi implements the service-provider-interface façade every
// backend-addressing caller (OAuth2 client storage, logging, search, kv,
// statistics) goes through instead of touching a backend connection
// directly.
package spi

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/grayforge/keyward/pkg/iamerr"
)

// Kind names a backend family this façade can address. The core SPI model
// supports more than relational backends; this package implements the
// relational (pgx) path and leaves
// the others to their own Conn implementations against the same Instance
// contract.
type Kind string

const (
	KindRelational Kind = "relational"
)

// Owner is the tenant/app context a schema name is derived from.
type Owner struct {
	ID string
}

// BsCert is the backend-instance certificate: connection parameters plus
// an arbitrary ext blob the backend kind interprets.
type BsCert struct {
	Kind Kind
	DSN  string
	Ext  json.RawMessage
}

// relationalExt is the decoded shape of BsCert.Ext for KindRelational:
// pool sizing and the SQL dialect the migrations/queries must target.
type relationalExt struct {
	MaxConns int32  `json:"max_conns"`
	Dialect  string `json:"dialect"`
}

// Flag is the platform namespace prefix used in physical table names.
const Flag = "starsys"

// PublicSchema is the isolation schema used for private (single-tenant)
// backend instances.
const PublicSchema = "public"

// SchemaFor derives a backend instance's isolation schema: "public" when
// private (one tenant per instance), else "spi" followed by the hex of the
// first 8 bytes of sha256(owner.ID) —
// reproducible from the context alone.
//
// A raw tenant id is not guaranteed to be identifier-safe (it may contain
// characters Postgres schema names reject), so it is hashed first: the
// schema name is an opaque derived string, not a literal tenant field.
func SchemaFor(private bool, owner Owner) string {
	if private {
		return PublicSchema
	}
	sum := sha256.Sum256([]byte(owner.ID))
	return "spi" + hex.EncodeToString(sum[:8])
}

// TableName renders the physical name of a logical table within schema,
// with an optional disambiguating tag:
// "<schema>.<flag>_<table>[_<tag>]".
func TableName(schema, table, tag string) string {
	name := schema + "." + Flag + "_" + table
	if tag != "" {
		name += "_" + tag
	}
	return name
}

// Instance is one initialized backend connection plus the isolation
// schema it was bound to.
type Instance struct {
	Kind   Kind
	Schema string
	Pool   *pgxpool.Pool
}

// Init brings up a relational backend instance: decode the
// cert, connect, derive the schema, and (in management mode) create it —
// or fail if it is expected to already exist.
func Init(ctx context.Context, cert BsCert, owner Owner, private, managementMode bool) (*Instance, error) {
	if cert.Kind != KindRelational {
		return nil, iamerr.BadRequest("spi", "init", "unsupported backend kind")
	}

	var ext relationalExt
	if len(cert.Ext) > 0 {
		if err := json.Unmarshal(cert.Ext, &ext); err != nil {
			return nil, iamerr.BadRequest("spi", "init", "malformed backend cert ext")
		}
	}

	cfg, err := pgxpool.ParseConfig(cert.DSN)
	if err != nil {
		return nil, iamerr.Wrap(iamerr.KindInternal, "spi", "init", "parsing backend dsn", err)
	}
	if ext.MaxConns > 0 {
		cfg.MaxConns = ext.MaxConns
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, iamerr.Wrap(iamerr.KindInternal, "spi", "init", "connecting to backend", err)
	}

	schema := SchemaFor(private, owner)

	if managementMode {
		if _, err := pool.Exec(ctx, `CREATE SCHEMA IF NOT EXISTS "`+schema+`"`); err != nil {
			pool.Close()
			return nil, iamerr.Wrap(iamerr.KindInternal, "spi", "init", "creating isolation schema", err)
		}
	} else if ok, err := schemaExists(ctx, pool, schema); err != nil {
		pool.Close()
		return nil, err
	} else if !ok {
		pool.Close()
		return nil, iamerr.NotFound("spi", "init", "isolation schema does not exist")
	}

	return &Instance{Kind: cert.Kind, Schema: schema, Pool: pool}, nil
}

func schemaExists(ctx context.Context, pool *pgxpool.Pool, schema string) (bool, error) {
	var exists bool
	err := pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM information_schema.schemata WHERE schema_name = $1)`, schema).Scan(&exists)
	if err != nil {
		return false, iamerr.Wrap(iamerr.KindInternal, "spi", "init", "checking isolation schema", err)
	}
	return exists, nil
}

// Close releases the instance's connection pool.
func (i *Instance) Close() {
	if i.Pool != nil {
		i.Pool.Close()
	}
}
