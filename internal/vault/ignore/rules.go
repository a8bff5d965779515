package ignore

// Defaults is the built-in exclusion set for a Home Assistant config tree.
// Databases and logs churn on every state change, media is too large to
// version, and secrets must never enter history.
var Defaults = []Rule{
	// recorder databases, several GB on long-running installs
	{"*.db", Large},
	{"*.db-shm", Volatile},
	{"*.db-wal", Volatile},
	{"*.db-journal", Volatile},
	{"*.sqlite", Large},
	{"*.sqlite3", Large},
	{"home-assistant_v2.db*", Large},

	// logs
	{"*.log", Volatile},
	{"*.log.*", Volatile},
	{"home-assistant.log*", Volatile},

	// media and platform-internal state
	{"/www/**", Large},
	{"/media/**", Large},
	{"/tmp/**", Volatile},
	{"/.storage/**", Volatile},
	{"/.cloud/**", Volatile},

	// secrets and key material
	{"secrets.yaml", Secret},
	{".secrets.yaml", Secret},
	{"*.pem", Secret},
	{"*.key", Secret},
	{"*.crt", Secret},

	// caches, backups, editor and OS litter
	{"__pycache__", Artifact},
	{"node_modules", Artifact},
	{"*.tmp", Artifact},
	{"*.temp", Artifact},
	{"*.swp", Artifact},
	{"*.swo", Artifact},
	{"*~", Artifact},
	{"*.bak", Artifact},
	{"*.backup", Artifact},
	{"*.old", Artifact},
	{".DS_Store", Artifact},
	{"Thumbs.db", Artifact},
	{"desktop.ini", Artifact},
	{".vscode", Artifact},
	{".idea", Artifact},
	{"*.code-workspace", Artifact},
}
