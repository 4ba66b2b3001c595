// Package schema describes the four tables behind the ledger: their names,
// insert defaults, cascade rules, and the migrations that create them.
package schema

import (
	"embed"
	"fmt"
	"io/fs"
	"sort"
	"strings"
	"time"
)

// Table names. The prefix keeps the tables apart from other projects sharing
// the same Supabase database.
const (
	Prefix       = "p01cf_"
	Accounts     = Prefix + "contas"
	Transactions = Prefix + "transacoes"
	Lists        = Prefix + "listas_compras"
	Items        = Prefix + "itens_lista"
)

// TimeLayout is the fixed-width UTC layout used for timestamps written by the
// application, so that lexical order equals chronological order.
const TimeLayout = "2006-01-02T15:04:05.000000Z07:00"

// FormatTime renders t with TimeLayout in UTC.
func FormatTime(t time.Time) string {
	return t.UTC().Format(TimeLayout)
}

// DeleteRule is the ON DELETE behaviour of a foreign key.
type DeleteRule int

const (
	Cascade DeleteRule = iota
	SetNull
)

// Relation is a foreign key from Table.Column to Parent.id.
type Relation struct {
	Table    string
	Column   string
	Parent   string
	OnDelete DeleteRule
}

// TableDef lists what the database fills in on insert.
type TableDef struct {
	Name string
	// Defaults are applied to columns absent from an inserted row.
	Defaults map[string]any
	// Timestamps are set to the insert time when absent.
	Timestamps []string
}

// Definitions returns the table definitions, mirroring the DDL defaults.
func Definitions() []TableDef {
	return []TableDef{
		{
			Name:       Accounts,
			Defaults:   map[string]any{"saldo": "0", "cor": "#007bff"},
			Timestamps: []string{"data_criacao"},
		},
		{
			Name:       Transactions,
			Defaults:   map[string]any{"descricao": nil, "operacao_id": nil},
			Timestamps: []string{"data"},
		},
		{
			Name:       Lists,
			Defaults:   map[string]any{"concluida": false, "conta_id": nil, "data_conclusao": nil},
			Timestamps: []string{"data_criacao"},
		},
		{
			Name:     Items,
			Defaults: map[string]any{"quantidade": 1},
		},
	}
}

// Relations returns the foreign keys of the schema.
func Relations() []Relation {
	return []Relation{
		{Table: Transactions, Column: "conta_id", Parent: Accounts, OnDelete: Cascade},
		{Table: Lists, Column: "conta_id", Parent: Accounts, OnDelete: SetNull},
		{Table: Items, Column: "lista_id", Parent: Lists, OnDelete: Cascade},
	}
}

//go:embed migrations/postgres/*.sql migrations/sqlite/*.sql
var migrationsFS embed.FS

// PostgresMigrations returns the golang-migrate source tree for PostgreSQL.
func PostgresMigrations() fs.FS {
	sub, err := fs.Sub(migrationsFS, "migrations/postgres")
	if err != nil {
		panic(err) // embedded path is fixed at build time
	}
	return sub
}

// SQLiteMigrations returns the golang-migrate source tree for SQLite.
func SQLiteMigrations() fs.FS {
	sub, err := fs.Sub(migrationsFS, "migrations/sqlite")
	if err != nil {
		panic(err)
	}
	return sub
}

// Script concatenates the PostgreSQL up migrations into one idempotent script
// that can be pasted into the Supabase SQL editor.
func Script() (string, error) {
	src := PostgresMigrations()
	names, err := fs.Glob(src, "*.up.sql")
	if err != nil {
		return "", err
	}
	sort.Strings(names)

	var b strings.Builder
	fmt.Fprintf(&b, "-- TABELAS COM PREFIXO %s\n-- Projeto 01 - Controle Financeiro\n", strings.ToUpper(Prefix))
	for _, name := range names {
		body, err := fs.ReadFile(src, name)
		if err != nil {
			return "", err
		}
		fmt.Fprintf(&b, "\n-- %s\n%s", name, body)
	}
	return b.String(), nil
}
