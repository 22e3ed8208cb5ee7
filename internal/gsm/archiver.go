package gsm

// Archiver packs save units into a single archive file and unpacks them back
// to their original locations.
//
// Both directions process every unit independently. Per-unit failures are
// collected and returned together once all units were attempted; failures of
// the archive container itself abort the call.
type Archiver interface {
	// Compress writes all units into a new archive at dest.
	Compress(units []SaveUnit, dest string) error

	// Decompress restores units from <backupDir>/<date>.zip, overwriting
	// whatever currently sits at each unit's path. n may be nil.
	Decompress(units []SaveUnit, backupDir, date string, n Notifier) error
}
