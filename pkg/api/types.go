package api

const (
	DefaultConfigFile   = ".release.yaml"
	DefaultMainBranch   = "main"
	DefaultTimezone     = "UTC"
	DefaultTagKey       = "image.tag"
	DefaultVersionKey   = "appVersion"
	DefaultMaxAttempts  = 3
	DefaultDockerfile   = "Dockerfile"
	DefaultScanner      = "sonar-scanner"
	DefaultCoverageProp = "coverage.jacoco.xmlReportPaths"

	StageTypeBuild    = "build"
	StageTypeScan     = "scan"
	StageTypeImage    = "image"
	StageTypeManifest = "manifest"

	EventPullRequest = "pull_request"
	EventDispatch    = "workflow_dispatch"
	EventPush        = "push"
)

// Pipeline is the .release.yaml configuration format.
type Pipeline struct {
	Timezone   string         `yaml:"timezone"`
	MainBranch string         `yaml:"mainBranch"`
	Context    map[string]any `yaml:"context"`
	Triggers   TriggerConfig  `yaml:"triggers"`
	Stages     []StageConfig  `yaml:"stages"`

	// Set by the loader, not from YAML.
	Dir      string `yaml:"-"`
	FilePath string `yaml:"-"`
}

// TriggerConfig lists the events that start a run.
type TriggerConfig struct {
	PullRequest *PullRequestTrigger `yaml:"pullRequest,omitempty"`
	Manual      bool                `yaml:"manual"`
	Push        *PushTrigger        `yaml:"push,omitempty"`
}

// PullRequestTrigger matches pull request events by action and base branch.
type PullRequestTrigger struct {
	Actions  []string `yaml:"actions"`
	Branches []string `yaml:"branches"`
}

// PushTrigger matches pushes by branch pattern.
type PushTrigger struct {
	Branches []string `yaml:"branches"`
}

// StageConfig defines a single stage within a pipeline.
type StageConfig struct {
	Name     string          `yaml:"name"`
	Type     string          `yaml:"type"`
	Build    *BuildConfig    `yaml:"build,omitempty"`
	Scan     *ScanConfig     `yaml:"scan,omitempty"`
	Image    *ImageConfig    `yaml:"image,omitempty"`
	Manifest *ManifestConfig `yaml:"manifest,omitempty"`
}

// RuntimeCheck verifies the pinned language runtime before building.
type RuntimeCheck struct {
	Command string   `yaml:"command"`
	Args    []string `yaml:"args"`
	Expect  string   `yaml:"expect"`
}

// Artifact is a named set of files kept after the build.
type Artifact struct {
	Name    string   `yaml:"name"`
	Paths   []string `yaml:"paths"`
	Exclude []string `yaml:"exclude"`
}

// BuildConfig configures the build stage.
type BuildConfig struct {
	Script    string        `yaml:"script"`
	BuildArgs []string      `yaml:"buildArgs"`
	TestArgs  []string      `yaml:"testArgs"`
	Runtime   *RuntimeCheck `yaml:"runtime,omitempty"`
	Artifacts []Artifact    `yaml:"artifacts"`
}

// ScanConfig configures the quality scan stage.
type ScanConfig struct {
	Executable       string            `yaml:"executable"`
	ProjectKey       string            `yaml:"projectKey"`
	Organization     string            `yaml:"organization"`
	HostURL          string            `yaml:"hostURL"`
	CoverageReport   string            `yaml:"coverageReport"`
	CoverageProperty string            `yaml:"coverageProperty"`
	TokenEnv         string            `yaml:"tokenEnv"`
	Properties       map[string]string `yaml:"properties"`
}

// ImageConfig configures the image publish stage.
type ImageConfig struct {
	Registry    string            `yaml:"registry"`
	Repository  string            `yaml:"repository"`
	UsernameEnv string            `yaml:"usernameEnv"`
	PasswordEnv string            `yaml:"passwordEnv"`
	Dockerfile  string            `yaml:"dockerfile"`
	Context     string            `yaml:"context"`
	BuildArgs   map[string]string `yaml:"buildArgs"`
}

// Author identifies the committer of manifest changes.
type Author struct {
	Name  string `yaml:"name"`
	Email string `yaml:"email"`
}

// PullRequestConfig configures the pull request opened for non-main refs.
type PullRequestConfig struct {
	Repository     string `yaml:"repository"` // owner/name
	APIURL         string `yaml:"apiURL"`
	Base           string `yaml:"base"`
	BranchTemplate string `yaml:"branchTemplate"`
	TitleTemplate  string `yaml:"titleTemplate"`
	BodyTemplate   string `yaml:"bodyTemplate"`
	IncludeChart   bool   `yaml:"includeChart"`
}

// ManifestConfig configures the manifest update stage.
type ManifestConfig struct {
	Image          string            `yaml:"image"` // name of an earlier image stage
	URL            string            `yaml:"url"`
	Branch         string            `yaml:"branch"`
	TokenEnv       string            `yaml:"tokenEnv"`
	ValuesFile     string            `yaml:"valuesFile"`
	ChartFile      string            `yaml:"chartFile"`
	TagKey         string            `yaml:"tagKey"`
	VersionKey     string            `yaml:"versionKey"`
	CommitTemplate string            `yaml:"commitTemplate"`
	Author         Author            `yaml:"author"`
	MaxAttempts    int               `yaml:"maxAttempts"`
	Lint           bool              `yaml:"lint"`
	BumpVersion    *bool             `yaml:"bumpVersion,omitempty"` // default true
	PullRequest    PullRequestConfig `yaml:"pullRequest"`
}

// BumpsVersion reports whether the chart appVersion is incremented.
func (m *ManifestConfig) BumpsVersion() bool {
	return m.BumpVersion == nil || *m.BumpVersion
}
