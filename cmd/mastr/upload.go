package main

import (
	"github.com/spf13/cobra"

	"mastr/internal/loader"
	"mastr/internal/upload"
	"mastr/internal/warehouse"
)

func (a *app) uploadCommand() *cobra.Command {
	var (
		dataDir  string
		encoding string
		kind     string
		dsn      string
		schema   string
	)
	cmd := &cobra.Command{
		Use:   "upload",
		Short: "Replace-load hydro.csv, wind.csv and biomass.csv into the sandbox schema",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s := a.settings
			if cmd.Flags().Changed("data-dir") {
				s.DataDir = dataDir
			}
			if cmd.Flags().Changed("encoding") {
				s.FileEncoding = encoding
			}
			if cmd.Flags().Changed("kind") {
				s.WarehouseKind = kind
			}
			if cmd.Flags().Changed("dsn") {
				s.WarehouseDSN = dsn
			}
			if cmd.Flags().Changed("schema") {
				s.Schema = schema
			}

			opener := warehouse.NewOpener(a.credentialProvider(), warehouse.Config{
				Kind:     s.WarehouseKind,
				Host:     s.WarehouseHost,
				Port:     s.WarehousePort,
				Database: s.WarehouseDB,
				SSLMode:  s.WarehouseSSLMode,
				DSN:      s.WarehouseDSN,
			}, a.log)
			l := loader.New(opener, s.Schema, s.BatchSize, a.log)
			u := upload.New(a.deps.fs, upload.DefaultSources(s.DataDir), l, upload.ReadOptions(s.FileEncoding), a.log)

			return failed(u.Run(cmd.Context()))
		},
	}
	f := cmd.Flags()
	f.StringVar(&dataDir, "data-dir", "", "directory holding the category CSV files (overrides MASTR_DATA_DIR)")
	f.StringVar(&encoding, "encoding", "", "source file encoding: utf-8 or windows-1252 (overrides MASTR_FILE_ENCODING)")
	f.StringVar(&kind, "kind", "", "warehouse storage kind: postgres, mssql or sqlite (overrides MASTR_WAREHOUSE_KIND)")
	f.StringVar(&dsn, "dsn", "", "warehouse connection string; skips warehouse credentials (overrides MASTR_WAREHOUSE_DSN)")
	f.StringVar(&schema, "schema", "", "destination schema (overrides MASTR_SCHEMA)")
	return cmd
}
