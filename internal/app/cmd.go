package app

// Command はアプリケーションの起動モードを表す。
type Command string

const (
	// CommandServe はAPIサーバー（画面・API・Webhook）を起動する。
	CommandServe Command = "serve"
	// CommandWorker はブログ同期とセッションクリーンアップを実行するワーカーを起動する。
	CommandWorker Command = "worker"
	// CommandMigrate はデータベースマイグレーションを実行する。
	CommandMigrate Command = "migrate"
	// CommandHealthcheck はdistroless環境でのDockerヘルスチェック用。
	CommandHealthcheck Command = "healthcheck"
)

var commandDescriptions = map[Command]string{
	CommandServe:       "HTTP server for pages, API and payment webhook",
	CommandWorker:      "blog feed sync and expired session cleanup",
	CommandMigrate:     "apply pending database migrations",
	CommandHealthcheck: "check the local /health endpoint",
}

// Description はログに出力するコマンドの説明を返す。
func (c Command) Description() string {
	return commandDescriptions[c]
}

// ParseCommand はコマンドライン引数からサブコマンドを解析する。
// 引数が空またはサポート外のコマンドの場合はCommandServeを返す。
func ParseCommand(args []string) Command {
	if len(args) == 0 {
		return CommandServe
	}

	cmd := Command(args[0])
	if _, ok := commandDescriptions[cmd]; ok {
		return cmd
	}
	return CommandServe
}
