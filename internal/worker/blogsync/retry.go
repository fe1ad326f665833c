package blogsync

import "time"

// FetchResult はHTTPステータスコードに基づく取得結果の分類。
type FetchResult int

const (
	// FetchResultOK は取得成功（2xx）。
	FetchResultOK FetchResult = iota
	// FetchResultNotModified はコンテンツ未変更（304）。
	FetchResultNotModified
	// FetchResultClientError は設定の見直しが必要なステータス（404/410/401/403）。
	FetchResultClientError
	// FetchResultBackoff は時間をおいて再試行するステータス（429/5xx）。
	FetchResultBackoff
	// FetchResultUnknown は未知のステータスコード。
	FetchResultUnknown
)

const (
	// initialBackoff は指数バックオフの初回遅延。
	initialBackoff = 5 * time.Minute
	// maxBackoff は指数バックオフの最大遅延。
	maxBackoff = 6 * time.Hour
)

// ClassifyHTTPStatus はHTTPステータスコードを取得結果に分類する。
func ClassifyHTTPStatus(statusCode int) FetchResult {
	switch {
	case statusCode >= 200 && statusCode < 300:
		return FetchResultOK
	case statusCode == 304:
		return FetchResultNotModified
	case statusCode == 404 || statusCode == 410:
		return FetchResultClientError
	case statusCode == 401 || statusCode == 403:
		return FetchResultClientError
	case statusCode == 429:
		return FetchResultBackoff
	case statusCode >= 500:
		return FetchResultBackoff
	default:
		return FetchResultUnknown
	}
}

// CalculateBackoff は連続失敗回数に基づいて指数バックオフ遅延を計算する。
// 1回目の失敗で5分、以降2倍ずつ増加し、最大6時間。
func CalculateBackoff(consecutiveFailures int) time.Duration {
	if consecutiveFailures <= 0 {
		return 0
	}
	delay := initialBackoff
	for i := 1; i < consecutiveFailures; i++ {
		delay *= 2
		if delay > maxBackoff {
			return maxBackoff
		}
	}
	return delay
}
