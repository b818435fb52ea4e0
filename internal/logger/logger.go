package logger

import (
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/lmittmann/tint"
)

// FormatText はローカル開発向けのカラー付きテキスト出力を表す。
const FormatText = "text"

// Setup はJSON構造化ログ出力のslog.Loggerを生成して返す。
// writerが指定された場合はそのwriterに出力する。
func Setup(w io.Writer) *slog.Logger {
	handler := slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	})
	return slog.New(handler)
}

// SetupWithFormat は指定フォーマットのslog.Loggerを生成する。
// "text"の場合はtintによるテキスト出力、それ以外はJSON出力になる。
func SetupWithFormat(w io.Writer, format string) *slog.Logger {
	if format != FormatText {
		return Setup(w)
	}
	return slog.New(tint.NewHandler(w, &tint.Options{
		Level:      slog.LevelDebug,
		TimeFormat: time.Kitchen,
	}))
}

// SetupDefault はJSON構造化ログ出力をグローバルロガーとして設定する。
// 本番ではos.Stdoutを渡すことを想定している。
func SetupDefault(w io.Writer) {
	SetupDefaultWithFormat(w, "")
}

// SetupDefaultWithFormat は指定フォーマットのロガーをグローバルロガーとして設定する。
func SetupDefaultWithFormat(w io.Writer, format string) {
	if w == nil {
		w = os.Stdout
	}
	slog.SetDefault(SetupWithFormat(w, format))
}
