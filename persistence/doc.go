// Package persistence stores facets as line-oriented text files.
//
// One facet per file, named <UniqueName>.facet:
//
//	UniqueName|Field|DisplayName
//	RawValue|Base64(serialized docset.Set)
//	...
//
// Lines end with the platform newline; the decoder accepts both "\n" and
// "\r\n". A value line splits at its last "|", so raw values may contain the
// delimiter. The serialized set carries its own universe, so a file loads
// without any other context.
//
// Files are write-once: Save fails with *facet.DuplicateFacetError when the
// file already exists. Publisher mirrors the same bytes to a blobstore.BlobStore.
package persistence
