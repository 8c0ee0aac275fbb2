package domain

// ArtifactFile is one generated file destined for the task repository.
type ArtifactFile struct {
	Path    string
	Content []byte
}

// ArtifactSet is the ordered list of files committed for one task attempt.
// Order matters: the publisher commits strictly in slice order.
type ArtifactSet []ArtifactFile
