package planner

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadFileYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "plan.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
topic_time_estimates:
  - topicId: tema-1
    topicTitle: Ley de Carreteras
    complexity: High
    baseStudyMinutes: 90
    recommendedContentLength: extended
practice_patterns:
  totalExamples: 10
  topicFrequency:
    - topic: Carreteras
      appearances: 5
      percentage: 0.5
      examples: [Supuesto 2]
`), 0o644))

	data, err := LoadFile(path)
	require.NoError(t, err)
	require.Len(t, data.TopicTimeEstimates, 1)
	require.Equal(t, LengthExtended, data.TopicTimeEstimates[0].RecommendedContentLength)
	require.NotNil(t, data.Practice)
	require.Equal(t, 10, New(data).PracticePatterns().TotalExamples)
}

func TestLoadFileJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "plan.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"topic_time_estimates":[{"topicId":"a","baseStudyMinutes":30}],"daily_schedule":[]}`), 0o644))
	data, err := LoadFile(path)
	require.NoError(t, err)
	require.Equal(t, 30, data.TopicTimeEstimates[0].BaseStudyMinutes)

	require.NoError(t, os.WriteFile(path, []byte(`{`), 0o644))
	_, err = LoadFile(path)
	require.Error(t, err)
}

func TestLoadOrder(t *testing.T) {
	t.Setenv(EnvPlanningData, `{"topic_time_estimates":[{"topicId":"env"}]}`)

	data, src, err := Load("")
	require.NoError(t, err)
	require.Equal(t, SourceEnv, src)
	require.Equal(t, "env", data.TopicTimeEstimates[0].TopicID)

	_, _, err = Load(filepath.Join(t.TempDir(), "missing.json"))
	require.Error(t, err)

	t.Setenv(EnvPlanningData, "")
	data, src, err = Load("")
	require.NoError(t, err)
	require.Equal(t, SourceDefault, src)
	require.True(t, data.Empty())

	t.Setenv(EnvPlanningData, "not json")
	_, _, err = Load("")
	require.Error(t, err)
}

func TestDefaultPracticePatterns(t *testing.T) {
	p := DefaultPracticePatterns()
	require.Equal(t, 15, p.TotalExamples)
	require.Equal(t, "Carreteras", p.TopicFrequency[0].Topic)
	require.Equal(t, 8, p.TopicFrequency[0].Appearances)
	require.Len(t, p.CriticalLaws, 2)
}
