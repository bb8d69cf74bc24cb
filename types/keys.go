package types

// Persisted key layout. One key holds the serialized collection, two keys
// hold the last-opened pointer, and a handful of documented prefixes mark
// low-priority data that quota cleanup may reclaim.
const (
	// NamespacePrefix scopes every key this subsystem owns. Restore clears
	// exactly this namespace before rewriting from a snapshot.
	NamespacePrefix = "diagramstore."

	// DiagramsKey holds the serialized document collection as one blob.
	DiagramsKey = "diagramstore.diagrams"

	// LastOpenedIDKey holds the ID of the most recently active document.
	LastOpenedIDKey = "diagramstore.lastOpenedId"

	// LastOpenedDataKey holds a payload snapshot for the last-opened document.
	LastOpenedDataKey = "diagramstore.lastOpenedData"

	// TempPrefix marks transient scratch data.
	TempPrefix = "diagramstore.temp."

	// CachePrefix marks regenerable cached data.
	CachePrefix = "diagramstore.cache."

	// PreviewPrefix marks rendered preview thumbnails.
	PreviewPrefix = "diagramstore.preview."

	// LegacyDocumentPrefix is the per-document key scheme used by older
	// schema versions. Orphan recovery scans it when the collection key
	// itself is unreadable; nothing is ever written under it anymore.
	LegacyDocumentPrefix = "diagramstore.diagram."
)
