package sqlite

const schema = `
CREATE TABLE IF NOT EXISTS commands (
  seq INTEGER PRIMARY KEY AUTOINCREMENT,
  id TEXT NOT NULL UNIQUE,
  description TEXT NOT NULL,
  payload TEXT NOT NULL,
  category TEXT NOT NULL,
  embedding BLOB NOT NULL,
  dimension INTEGER NOT NULL,
  created_at INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS commands_category ON commands(category);
`
