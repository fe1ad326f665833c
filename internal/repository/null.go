package repository

import "database/sql"

// nullStringValue はsql.NullStringを空文字デフォルトの文字列に変換する。
func nullStringValue(ns sql.NullString) string {
	if ns.Valid {
		return ns.String
	}
	return ""
}

// toNullString は空文字をNULLとして扱うsql.NullStringを返す。
func toNullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
