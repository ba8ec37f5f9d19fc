package storage

const schema = `
-- Decks group cards that share an algorithm config.
CREATE TABLE IF NOT EXISTS decks (
    id TEXT PRIMARY KEY,
    name TEXT NOT NULL UNIQUE,
    created_at DATETIME NOT NULL
);

-- Cards hold the content payload plus the current scheduling state.
-- due_at is NULL only while the card is New and has never been studied.
CREATE TABLE IF NOT EXISTS cards (
    id TEXT PRIMARY KEY,
    deck_id TEXT NOT NULL,
    front TEXT NOT NULL,
    back TEXT NOT NULL,
    context TEXT NOT NULL DEFAULT '',
    content_hash TEXT NOT NULL,
    state INTEGER NOT NULL DEFAULT 0, -- 0: New, 1: Learning, 2: Review, 3: Relearning
    step INTEGER NOT NULL DEFAULT 0,
    interval_days REAL NOT NULL DEFAULT 0,
    ease_factor REAL NOT NULL DEFAULT 0,
    lapses INTEGER NOT NULL DEFAULT 0,
    lapse_streak INTEGER NOT NULL DEFAULT 0,
    due_at DATETIME,
    last_reviewed_at DATETIME,
    revision INTEGER NOT NULL DEFAULT 0,
    source_id INTEGER,
    created_at DATETIME NOT NULL,

    FOREIGN KEY(deck_id) REFERENCES decks(id),
    FOREIGN KEY(source_id) REFERENCES sources(id)
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_cards_deck_hash ON cards(deck_id, content_hash);
CREATE INDEX IF NOT EXISTS idx_cards_due ON cards(deck_id, state, due_at);

-- The append-only review log. The (card_id, nonce) unique index is the
-- idempotency guard: a replayed submission hits it instead of inserting
-- a second event.
CREATE TABLE IF NOT EXISTS review_events (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    card_id TEXT NOT NULL,
    deck_id TEXT NOT NULL,
    nonce TEXT NOT NULL,
    reviewed_at DATETIME NOT NULL,
    grade INTEGER NOT NULL,
    interval_before REAL NOT NULL,
    interval_after REAL NOT NULL,
    ease_before REAL NOT NULL,
    ease_after REAL NOT NULL,
    leech INTEGER NOT NULL DEFAULT 0,

    UNIQUE(card_id, nonce),
    FOREIGN KEY(card_id) REFERENCES cards(id)
);

CREATE INDEX IF NOT EXISTS idx_events_reviewed_at ON review_events(reviewed_at);
CREATE INDEX IF NOT EXISTS idx_events_card ON review_events(card_id, id);

-- Per-deck algorithm overrides. NULL columns inherit the global default;
-- the settings resolver merges field by field.
CREATE TABLE IF NOT EXISTS deck_configs (
    deck_id TEXT PRIMARY KEY,
    learning_steps TEXT,
    graduating_interval_days INTEGER,
    easy_interval_days INTEGER,
    starting_ease REAL,
    easy_ease_bonus REAL,
    hard_ease_penalty REAL,
    lapse_ease_penalty REAL,
    hard_interval_factor REAL,
    easy_interval_bonus REAL,
    interval_modifier REAL,
    max_interval_days INTEGER,
    lapse_interval_fraction REAL,
    leech_threshold INTEGER,

    FOREIGN KEY(deck_id) REFERENCES decks(id)
);

-- Card sources feed decks from local directories or git repositories.
CREATE TABLE IF NOT EXISTS sources (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    deck_id TEXT NOT NULL,
    path TEXT NOT NULL UNIQUE,
    type TEXT NOT NULL, -- 'local' or 'git'
    last_scanned DATETIME,

    FOREIGN KEY(deck_id) REFERENCES decks(id)
);
`
