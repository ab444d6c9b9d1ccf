package datastore

// SQL schemas for the catalog tables.
// Index creation is kept separate so bulk loads insert into bare tables.

// BooksSchema defines the books table
const BooksSchema = `
CREATE TABLE IF NOT EXISTS books (
	lib_id TEXT NOT NULL,
	title TEXT NOT NULL,
	title_normalized TEXT NOT NULL,
	series TEXT,
	series_normalized TEXT,
	series_order INTEGER,
	language TEXT,
	genre TEXT
);
`

// AuthorsSchema defines the authors table. The *_normalized columns hold the
// folded name parts, since SQLite only folds ASCII itself.
const AuthorsSchema = `
CREATE TABLE IF NOT EXISTS authors (
	book_lib_id TEXT NOT NULL,
	first_name TEXT,
	last_name TEXT,
	middle_name TEXT,
	first_name_normalized TEXT,
	last_name_normalized TEXT,
	middle_name_normalized TEXT
);
`

// CollectionMetaSchema defines the singleton fingerprint table
const CollectionMetaSchema = `
CREATE TABLE IF NOT EXISTS collection_meta (
	id INTEGER PRIMARY KEY CHECK (id = 1),
	size INTEGER NOT NULL
);
`

// IndexSchema defines the secondary indexes built after a load
const IndexSchema = `
CREATE UNIQUE INDEX IF NOT EXISTS idx_books_lib_id ON books(lib_id);
CREATE INDEX IF NOT EXISTS idx_books_title_normalized ON books(title_normalized);
CREATE INDEX IF NOT EXISTS idx_books_series_normalized ON books(series_normalized);
CREATE INDEX IF NOT EXISTS idx_authors_book_lib_id ON authors(book_lib_id);
CREATE INDEX IF NOT EXISTS idx_authors_last_name ON authors(last_name_normalized);
CREATE INDEX IF NOT EXISTS idx_authors_first_name ON authors(first_name_normalized);
CREATE INDEX IF NOT EXISTS idx_authors_middle_name ON authors(middle_name_normalized);
`

const dropCatalogSchema = `
DROP TABLE IF EXISTS books;
DROP TABLE IF EXISTS authors;
`

// AllSchemas lists every table schema in creation order
var AllSchemas = []string{
	BooksSchema,
	AuthorsSchema,
	CollectionMetaSchema,
}
