package stats

/*
This file defines all the metrics being collected. As new metrics are added please follow this pattern.
*/

const (
	/************************* Coordinator metrics **************************/
	/*
		datagrams read off the coordinator socket, decodable or not
	*/
	CoordRecvCounter = "recvCounter"

	/*
		datagrams dropped because they did not decode
	*/
	CoordDecodeErrCounter = "decodeErrCounter"

	/*
		CommBegin / CommEnd events applied to the communication counter
	*/
	CoordCommBeginCounter = "commBeginCounter"
	CoordCommEndCounter   = "commEndCounter"

	/*
		requests of other kinds that reached the coordinator and were ignored
	*/
	CoordIgnoredCounter = "ignoredCounter"

	/*
		current value of the communication counter, sampled every control step
	*/
	CoordCommInFlightGauge = "commInFlightGauge"

	/*
		1 while the job is running, 0 while suspended
	*/
	CoordJobRunningGauge = "jobRunningGauge"

	/*
		Stop / Cont broadcasts issued by the control loop
	*/
	CoordStopCounter = "stopCounter"
	CoordContCounter = "contCounter"

	/*
		time spent sending one broadcast to every agent
	*/
	CoordBroadcastLatency_ms = "broadcastLatency_ms"

	/*
		per destination send failures during broadcasts
	*/
	CoordSendErrCounter = "sendErrCounter"

	/*
		number of agents the coordinator broadcasts to
	*/
	CoordAgentCountGauge = "agentCountGauge"

	/************************* Agent metrics **************************/
	/*
		datagrams read off the agent socket, decodable or not
	*/
	AgentRecvCounter = "recvCounter"

	/*
		datagrams dropped because they did not decode
	*/
	AgentDecodeErrCounter = "decodeErrCounter"

	/*
		requests forwarded to the coordinator, and forwards that failed
	*/
	AgentRelayCounter    = "relayCounter"
	AgentRelayErrCounter = "relayErrCounter"

	/*
		number of pids currently in the registry
	*/
	AgentRegisteredGauge = "registeredGauge"

	/*
		Unregister requests naming a pid that was not registered
	*/
	AgentUnknownPidCounter = "unknownPidCounter"

	/*
		individual suspend / resume deliveries, and the ones that failed
	*/
	AgentSignalCounter    = "signalCounter"
	AgentSignalErrCounter = "signalErrCounter"

	/*
		pids dropped from the registry because their process no longer exists
	*/
	AgentPrunedCounter = "prunedCounter"

	/*
		time to deliver one Stop or Cont to every registered pid
	*/
	AgentFanoutLatency_ms = "fanoutLatency_ms"
)
