package sqlite

const schema = `
CREATE TABLE IF NOT EXISTS folder_events (
    id          INTEGER PRIMARY KEY AUTOINCREMENT,
    kind        TEXT NOT NULL CHECK (kind IN ('created', 'archived')),
    name        TEXT NOT NULL,
    path        TEXT NOT NULL,
    destination TEXT NOT NULL DEFAULT '',
    hash        TEXT NOT NULL DEFAULT '',
    department  TEXT NOT NULL DEFAULT '',
    source      TEXT NOT NULL DEFAULT '',
    created_at  DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_folder_events_hash ON folder_events(hash);
CREATE INDEX IF NOT EXISTS idx_folder_events_created ON folder_events(created_at DESC);
`
