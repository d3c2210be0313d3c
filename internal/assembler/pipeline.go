package assembler

import (
	"bytes"
	"fmt"

	"gopkg.in/yaml.v3"

	"web2app-backend/internal/models"
)

// PipelineConfig is the codemagic.yaml document.
type PipelineConfig struct {
	Workflows map[string]Workflow `yaml:"workflows"`
}

type Workflow struct {
	Name             string              `yaml:"name"`
	MaxBuildDuration int                 `yaml:"max_build_duration"`
	InstanceType     string              `yaml:"instance_type"`
	Environment      WorkflowEnvironment `yaml:"environment"`
	Scripts          []WorkflowScript    `yaml:"scripts"`
	Artifacts        []string            `yaml:"artifacts"`
	Publishing       *WorkflowPublishing `yaml:"publishing,omitempty"`
}

type WorkflowEnvironment struct {
	Node  string            `yaml:"node"`
	Xcode string            `yaml:"xcode,omitempty"`
	Vars  map[string]string `yaml:"vars"`
}

type WorkflowScript struct {
	Name   string `yaml:"name"`
	Script string `yaml:"script"`
}

type WorkflowPublishing struct {
	Email WorkflowEmail `yaml:"email"`
}

type WorkflowEmail struct {
	Recipients []string `yaml:"recipients"`
	Notify     struct {
		Success bool `yaml:"success"`
		Failure bool `yaml:"failure"`
	} `yaml:"notify"`
}

// WorkflowIDs names the Codemagic workflow used per platform.
type WorkflowIDs struct {
	Android string
	IOS     string
}

// BuildPipeline produces one workflow per requested platform.
func BuildPipeline(cfg *models.BuildConfig, ids WorkflowIDs) (*PipelineConfig, error) {
	if _, err := parseSiteURL(cfg.WebsiteURL); err != nil {
		return nil, err
	}

	vars := map[string]string{
		"APP_NAME":    cfg.AppName,
		"PACKAGE_ID":  cfg.PackageID,
		"WEBSITE_URL": cfg.WebsiteURL,
	}

	pipeline := &PipelineConfig{Workflows: make(map[string]Workflow)}
	for _, platform := range cfg.Platforms {
		switch platform {
		case models.PlatformAndroid:
			pipeline.Workflows[ids.Android] = androidWorkflow(vars)
		case models.PlatformIOS:
			pipeline.Workflows[ids.IOS] = iosWorkflow(vars)
		default:
			return nil, fmt.Errorf("%w: unsupported platform %q", ErrInvalidConfig, platform)
		}
	}
	return pipeline, nil
}

func androidWorkflow(vars map[string]string) Workflow {
	return Workflow{
		Name:             "Android build",
		MaxBuildDuration: 60,
		InstanceType:     "linux_x2",
		Environment:      WorkflowEnvironment{Node: "20", Vars: vars},
		Scripts: []WorkflowScript{
			{Name: "Install dependencies", Script: "npm ci || npm install"},
			{Name: "Generate native project", Script: "npx expo prebuild --platform android --non-interactive"},
			{Name: "Build APK", Script: "cd android && ./gradlew assembleRelease"},
			{Name: "Build AAB", Script: "cd android && ./gradlew bundleRelease"},
		},
		Artifacts: []string{
			"android/app/build/outputs/apk/release/*.apk",
			"android/app/build/outputs/bundle/release/*.aab",
		},
	}
}

func iosWorkflow(vars map[string]string) Workflow {
	return Workflow{
		Name:             "iOS build",
		MaxBuildDuration: 90,
		InstanceType:     "mac_mini_m2",
		Environment:      WorkflowEnvironment{Node: "20", Xcode: "latest", Vars: vars},
		Scripts: []WorkflowScript{
			{Name: "Install dependencies", Script: "npm ci || npm install"},
			{Name: "Generate native project", Script: "npx expo prebuild --platform ios --non-interactive"},
			{Name: "Install pods", Script: "cd ios && pod install"},
			{Name: "Build IPA", Script: "xcode-project build-ipa --workspace ios/*.xcworkspace --scheme \"$(ls ios | grep xcworkspace | sed 's/.xcworkspace//')\""},
		},
		Artifacts: []string{"build/ios/ipa/*.ipa"},
	}
}

// RenderPipeline returns the codemagic.yaml text.
func RenderPipeline(cfg *models.BuildConfig, ids WorkflowIDs) ([]byte, error) {
	pipeline, err := BuildPipeline(cfg, ids)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(pipeline); err != nil {
		return nil, fmt.Errorf("failed to encode pipeline: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("failed to encode pipeline: %w", err)
	}
	return buf.Bytes(), nil
}
