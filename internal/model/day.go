package model

import "time"

// StartOfDay はlocにおけるtの日の始まり（00:00:00）を返す。
func StartOfDay(t time.Time, loc *time.Location) time.Time {
	local := t.In(loc)
	return time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
}

// EndOfDay はlocにおけるtの日の終わり（23:59:59.999999999）を返す。
// PostgreSQLのtimestamptzはマイクロ秒に丸めるため、DBの検索条件には
// NextDayStartによる半開区間を使うこと。
func EndOfDay(t time.Time, loc *time.Location) time.Time {
	return NextDayStart(t, loc).Add(-time.Nanosecond)
}

// NextDayStart はlocにおけるtの翌日の始まりを返す。
func NextDayStart(t time.Time, loc *time.Location) time.Time {
	return StartOfDay(t, loc).AddDate(0, 0, 1)
}
