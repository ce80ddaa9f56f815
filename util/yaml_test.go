package util

import (
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

type yamlParentType struct {
	Name string       `yaml:"name"`
	Port yamlPortType `yaml:"port"`
}

type yamlPortType uint16

func (p *yamlPortType) UnmarshalYAML(node *yaml.Node) error {
	v, err := strconv.ParseUint(node.Value, 10, 16)
	if err != nil || v == 0 {
		return NewYamlError(node, "invalid port")
	}
	*p = yamlPortType(v)
	return nil
}

func TestYAMLMarshal(t *testing.T) {
	y, err := MarshalYaml(&yamlParentType{
		Name: "syslog",
		Port: 514,
	})
	assert.NoError(t, err)
	assert.Equal(t, "name: syslog\nport: 514\n", y)
}

func TestYAMLUnmarshal(t *testing.T) {
	var yp yamlParentType

	assert.NoError(t, UnmarshalYamlString("name: syslog\nport: 514\n", &yp))
	assert.Equal(t, yamlPortType(514), yp.Port)

	assert.ErrorContains(t, UnmarshalYamlString(`
name: telnet
port: 0
`, &yp), "yaml line 3:7: invalid port")

	assert.ErrorContains(t, UnmarshalYamlString("name: x\nhost: y\n", &yp), "field host not found")
}

func TestYAMLUnmarshalFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.yml")
	require.NoError(t, os.WriteFile(path, []byte("name: file\nport: 23\n"), 0o600))

	var yp yamlParentType
	assert.NoError(t, UnmarshalYamlFile(path, &yp))
	assert.Equal(t, yamlParentType{Name: "file", Port: 23}, yp)

	assert.Error(t, UnmarshalYamlFile(path+".missing", &yp))
}
