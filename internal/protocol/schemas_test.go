package protocol_test

import (
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

func TestSchemas_ValidateSamples(t *testing.T) {
	compile := func(name string) *jsonschema.Schema {
		t.Helper()
		p := filepath.Join("..", "..", "schemas", name)
		s, err := jsonschema.Compile(p)
		if err != nil {
			t.Fatalf("compile %s: %v", name, err)
		}
		return s
	}

	validate := func(s *jsonschema.Schema, v any) {
		t.Helper()
		if err := s.Validate(v); err != nil {
			t.Fatalf("validate: %v", err)
		}
	}

	helloSchema := compile("hello.schema.json")
	planRequestSchema := compile("plan_request.schema.json")
	planResultSchema := compile("plan_result.schema.json")
	registerSchema := compile("register_robot.schema.json")
	obstacleSchema := compile("add_obstacle.schema.json")

	var hello any
	_ = json.Unmarshal([]byte(`{
	  "type":"HELLO",
	  "protocol_version":"1.0",
	  "client_name":"strategy-sim"
	}`), &hello)
	validate(helloSchema, hello)

	var register any
	_ = json.Unmarshal([]byte(`{
	  "type":"REGISTER_ROBOT",
	  "robot":{
	    "name":"alpha",
	    "radius":0.45,
	    "mass":55,
	    "moi":6.5,
	    "max_velocity":4.5,
	    "max_acceleration":6,
	    "max_omega":8,
	    "max_alpha":20,
	    "drivetrain":{
	      "module_offsets":[[0.3,0.3],[-0.3,0.3],[-0.3,-0.3],[0.3,-0.3]],
	      "motor_torque":1.2,
	      "motor_free_speed":95,
	      "wheel_radius":0.05,
	      "friction":1.1
	    }
	  }
	}`), &register)
	validate(registerSchema, register)

	var circle any
	_ = json.Unmarshal([]byte(`{
	  "type":"ADD_OBSTACLE",
	  "obstacle":{"name":"post","kind":"circle","center":[4.2,2.1],"radius":0.3}
	}`), &circle)
	validate(obstacleSchema, circle)

	var poly any
	_ = json.Unmarshal([]byte(`{
	  "type":"ADD_OBSTACLE",
	  "obstacle":{"kind":"polygon","points":[[1,1],[2,1],[2,2]]}
	}`), &poly)
	validate(obstacleSchema, poly)

	var req any
	_ = json.Unmarshal([]byte(`{
	  "type":"PLAN_REQUEST",
	  "request_id":"r-1",
	  "robot":"alpha",
	  "start":[0.5,0.5],
	  "goal":[9.5,9.5],
	  "heading":0,
	  "avoid":true,
	  "strategy":"time"
	}`), &req)
	validate(planRequestSchema, req)

	var okResult any
	_ = json.Unmarshal([]byte(`{
	  "type":"PLAN_RESULT",
	  "request_id":"r-1",
	  "robot":"alpha",
	  "ok":true,
	  "travel_time":3.25,
	  "path_length":12.7,
	  "max_velocity":4.1,
	  "samples":[
	    {"x":0.5,"y":0.5,"heading":0,"velocity_x":0,"velocity_y":0,"angular_velocity":0,"timestamp":0}
	  ],
	  "adjusted":[{"from":0,"to":1.5}]
	}`), &okResult)
	validate(planResultSchema, okResult)

	var failResult any
	_ = json.Unmarshal([]byte(`{
	  "type":"PLAN_RESULT",
	  "robot":"alpha",
	  "ok":false,
	  "code":"E_NO_PATH",
	  "message":"no path found"
	}`), &failResult)
	validate(planResultSchema, failResult)
}

func TestSchemas_RejectBadSamples(t *testing.T) {
	s, err := jsonschema.Compile(filepath.Join("..", "..", "schemas", "plan_request.schema.json"))
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	bad := []string{
		`{"type":"PLAN_REQUEST","robot":"","start":[0,0],"goal":[1,1],"heading":0}`,
		`{"type":"PLAN_REQUEST","robot":"alpha","start":[0],"goal":[1,1],"heading":0}`,
		`{"type":"PLAN_REQUEST","robot":"alpha","start":[0,0],"goal":[1,1],"heading":0,"strategy":"fastest"}`,
		`{"type":"PLAN_REQUEST","robot":"alpha","goal":[1,1],"heading":0}`,
	}
	for i, raw := range bad {
		var v any
		if err := json.Unmarshal([]byte(raw), &v); err != nil {
			t.Fatalf("case %d: %v", i, err)
		}
		if err := s.Validate(v); err == nil {
			t.Fatalf("case %d: expected validation failure", i)
		}
	}
}
