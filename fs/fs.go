package appfs

import "embed"

// FS holds the SQL migrations & email templates shipped with the binaries.
//go:embed migrations/*.sql templates/email/*
var FS embed.FS
