// Package feed defines the domain types and collaborator interfaces shared by
// the accident-record publisher: the source connector, document assembler,
// dedup ledger, publishing service, and publish loop all speak in these terms.
package feed
