package sqlite

// schemaVersion is the current schema version this build expects. On open,
// Store.migrate brings any older (or absent) schema_metadata row up to
// this version.
const schemaVersion = 2

const schemaV1 = `
CREATE TABLE IF NOT EXISTS schema_metadata (
	version INTEGER NOT NULL,
	description TEXT NOT NULL,
	applied_at TIMESTAMP NOT NULL,
	updated_at TIMESTAMP NOT NULL
);

CREATE TABLE IF NOT EXISTS entities (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	name TEXT NOT NULL UNIQUE,
	entity_type TEXT NOT NULL,
	created_at TIMESTAMP NOT NULL,
	updated_at TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_entities_type ON entities(entity_type);
`

// schemaV2 adds the observations/relations/embeddings tables, their
// indexes, and the FTS5 shadow indexes with sync triggers. Split from
// schemaV1 so the migration routine can parse any legacy JSON-array
// observations column (present in schema version < 2 database files)
// before observations exists and is populated from scratch.
const schemaV2 = `
CREATE TABLE IF NOT EXISTS observations (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	entity_id INTEGER NOT NULL REFERENCES entities(id) ON DELETE CASCADE,
	content TEXT NOT NULL,
	created_at TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_observations_entity_created ON observations(entity_id, created_at);

CREATE TABLE IF NOT EXISTS relations (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	from_entity INTEGER NOT NULL REFERENCES entities(id) ON DELETE CASCADE,
	to_entity INTEGER NOT NULL REFERENCES entities(id) ON DELETE CASCADE,
	relation_type TEXT NOT NULL,
	created_at TIMESTAMP NOT NULL,
	updated_at TIMESTAMP NOT NULL,
	UNIQUE(from_entity, to_entity, relation_type)
);

CREATE INDEX IF NOT EXISTS idx_relations_from ON relations(from_entity);
CREATE INDEX IF NOT EXISTS idx_relations_to ON relations(to_entity);
CREATE INDEX IF NOT EXISTS idx_relations_type ON relations(relation_type);

CREATE TABLE IF NOT EXISTS embeddings (
	entity_id INTEGER NOT NULL REFERENCES entities(id) ON DELETE CASCADE,
	model_name TEXT NOT NULL,
	dimensions INTEGER NOT NULL,
	embedding BLOB NOT NULL,
	created_at TIMESTAMP NOT NULL,
	PRIMARY KEY (entity_id, model_name)
);

CREATE INDEX IF NOT EXISTS idx_embeddings_model ON embeddings(model_name);

CREATE VIRTUAL TABLE IF NOT EXISTS entities_fts USING fts5(
	name, entity_type,
	content='entities', content_rowid='id'
);

CREATE VIRTUAL TABLE IF NOT EXISTS observations_fts USING fts5(
	content,
	content='observations', content_rowid='id'
);

CREATE TRIGGER IF NOT EXISTS entities_ai AFTER INSERT ON entities BEGIN
	INSERT INTO entities_fts(rowid, name, entity_type) VALUES (new.id, new.name, new.entity_type);
END;
CREATE TRIGGER IF NOT EXISTS entities_ad AFTER DELETE ON entities BEGIN
	INSERT INTO entities_fts(entities_fts, rowid, name, entity_type) VALUES ('delete', old.id, old.name, old.entity_type);
END;
CREATE TRIGGER IF NOT EXISTS entities_au AFTER UPDATE ON entities BEGIN
	INSERT INTO entities_fts(entities_fts, rowid, name, entity_type) VALUES ('delete', old.id, old.name, old.entity_type);
	INSERT INTO entities_fts(rowid, name, entity_type) VALUES (new.id, new.name, new.entity_type);
END;

CREATE TRIGGER IF NOT EXISTS observations_ai AFTER INSERT ON observations BEGIN
	INSERT INTO observations_fts(rowid, content) VALUES (new.id, new.content);
END;
CREATE TRIGGER IF NOT EXISTS observations_ad AFTER DELETE ON observations BEGIN
	INSERT INTO observations_fts(observations_fts, rowid, content) VALUES ('delete', old.id, old.content);
END;
CREATE TRIGGER IF NOT EXISTS observations_au AFTER UPDATE ON observations BEGIN
	INSERT INTO observations_fts(observations_fts, rowid, content) VALUES ('delete', old.id, old.content);
	INSERT INTO observations_fts(rowid, content) VALUES (new.id, new.content);
END;
`
