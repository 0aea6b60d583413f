package wizard

// Artifact keys stored on a session.
const (
	ArtifactVisionImage      = "vision_image"
	ArtifactQuadrantAnalysis = "quadrant_analysis"
	ArtifactQuadrantChart    = "quadrant_chart"
	ArtifactMotto            = "motto"
	ArtifactCoursePlan       = "course_plan"
	ArtifactLongevityFactors = "longevity_factors"
	ArtifactReportPath       = "report_path"
)

// ArtifactKind tags the variant of a GeneratedArtifact.
type ArtifactKind int

const (
	PlainText ArtifactKind = iota
	ImageReference
	ChartImageBuffer
)

func (k ArtifactKind) String() string {
	switch k {
	case PlainText:
		return "text"
	case ImageReference:
		return "image_reference"
	case ChartImageBuffer:
		return "chart_image"
	default:
		return "unknown"
	}
}

// Artifact is the output of exactly one generation call.
type Artifact struct {
	Kind ArtifactKind
	Text string
	URL  string
	PNG  []byte
}

func TextArtifact(text string) Artifact { return Artifact{Kind: PlainText, Text: text} }

func ImageArtifact(url string) Artifact { return Artifact{Kind: ImageReference, URL: url} }

func ChartArtifact(png []byte) Artifact { return Artifact{Kind: ChartImageBuffer, PNG: png} }
