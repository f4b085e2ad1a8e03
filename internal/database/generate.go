package database

// To regenerate schema.sql from the embedded SQLite migrations:
//   go generate ./internal/database

//go:generate sh -c "cd ../.. && go run internal/database/tools/generate_schema.go"
