// Package storage provides the sources jsonguard loads named schema
// documents from.
//
// Every backend implements Source, which lists the documents it holds and
// fetches one by name:
//
//   - FileSystemSource reads *.json, *.yaml and *.yml files from a directory;
//     the schema name is the file stem.
//   - PostgresSource reads rows of a (name, document) table through lib/pq.
//   - RedisSource reads fields of a hash mapping names to documents.
//   - S3Source reads objects under a bucket prefix through the AWS SDK, named
//     like files.
//
// Open builds a source from Config. Documents are returned as raw bytes;
// Decode turns one into a jsonvalue.Value according to its Format.
package storage
